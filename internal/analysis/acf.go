package analysis

// Profile holds the autocorrelation function of a series and of its
// first difference, for diagnostic output. Lags, Original and
// Differenced are parallel; Differenced may be shorter when the
// differenced series limits the lag range, and either may be empty when
// the corresponding series is constant or too short.
type Profile struct {
	ProcessID   string    `json:"process_id"`
	Lags        []int     `json:"lags"`
	Original    []float64 `json:"acf_original"`
	Differenced []float64 `json:"acf_differenced"`
}

// ComputeProfile calculates the ACF of the series and its first
// difference at lags 0..maxLag. The scoring metric ACFMaxDiff is
// derived from the same Differenced values via MaxAbsLag, so the
// diagnostic profile and the classifier input agree by construction.
func ComputeProfile(processID string, values []float64, maxLag int) Profile {
	original := ACF(values, maxLag)
	differenced := ACF(Diff(values), maxLag)

	nLags := len(original)
	if len(differenced) > nLags {
		nLags = len(differenced)
	}
	lags := make([]int, nLags)
	for i := range lags {
		lags[i] = i
	}

	return Profile{
		ProcessID:   processID,
		Lags:        lags,
		Original:    original,
		Differenced: differenced,
	}
}

// MaxDiff returns the scoring metric for this profile: the maximum
// absolute differenced-series autocorrelation beyond lag 0, with its
// lag. Sentinel (0, 0) when the differenced ACF is unavailable.
func (p Profile) MaxDiff() (float64, int) {
	return MaxAbsLag(p.Differenced)
}
