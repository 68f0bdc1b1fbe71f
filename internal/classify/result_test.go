package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Accumulate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		acc   Result
		other Result
		want  Result
	}{{
		name:  "match",
		acc:   Result{},
		other: Result{matched: true},
		want:  Result{matched: true},
	}, {
		name:  "no_decision",
		acc:   Result{matched: true},
		other: Result{},
		want:  Result{matched: true},
	}, {
		name:  "exception_overrides",
		acc:   Result{matched: true},
		other: Result{matched: true, exception: true},
		want:  Result{matched: true, exception: true},
	}, {
		name:  "important_locks",
		acc:   Result{matched: true, important: true},
		other: Result{matched: true, exception: true},
		want:  Result{matched: true, important: true},
	}, {
		name:  "failed_ignored",
		acc:   Result{matched: true},
		other: Result{status: StatusNotInitialized, exception: true},
		want:  Result{matched: true},
	}, {
		name:  "invalid_ignored",
		acc:   Result{},
		other: Result{status: StatusInvalidArg, matched: true},
		want:  Result{},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.acc
			got.Accumulate(tc.other)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResult_Accumulate_importantIdempotent(t *testing.T) {
	t.Parallel()

	acc := Result{}
	acc.Accumulate(Result{matched: true, important: true})
	locked := acc

	others := []Result{
		{matched: true, exception: true},
		{exception: true},
		{matched: true},
		{status: StatusNotInitialized},
		{},
	}
	for _, other := range others {
		acc.Accumulate(other)
		assert.Equal(t, locked, acc)
	}
}

func TestResult_derived(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		res      Result
		wantHit  bool
		wantExc  bool
		wantImp  bool
		wantOK   bool
		wantMtch bool
	}{{
		name:     "zero",
		res:      Result{},
		wantHit:  false,
		wantExc:  false,
		wantImp:  false,
		wantOK:   true,
		wantMtch: false,
	}, {
		name:     "hit",
		res:      Result{matched: true},
		wantHit:  true,
		wantExc:  false,
		wantImp:  false,
		wantOK:   true,
		wantMtch: true,
	}, {
		name:     "exception",
		res:      Result{matched: true, exception: true},
		wantHit:  false,
		wantExc:  true,
		wantImp:  false,
		wantOK:   true,
		wantMtch: true,
	}, {
		name:     "important",
		res:      Result{matched: true, important: true},
		wantHit:  true,
		wantExc:  false,
		wantImp:  true,
		wantOK:   true,
		wantMtch: true,
	}, {
		name:     "failed",
		res:      Result{status: StatusNotInitialized, matched: true},
		wantHit:  false,
		wantExc:  false,
		wantImp:  false,
		wantOK:   false,
		wantMtch: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.wantHit, tc.res.Hit())
			assert.Equal(t, tc.wantExc, tc.res.Exception())
			assert.Equal(t, tc.wantImp, tc.res.Important())
			assert.Equal(t, tc.wantOK, tc.res.OK())
			assert.Equal(t, tc.wantMtch, tc.res.Matched())
		})
	}
}
