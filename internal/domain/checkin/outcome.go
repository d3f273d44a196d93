package checkin

// Submission outcomes returned by the reconciliation endpoint. Both admitted
// and duplicate are success outcomes for the submitting station; invalid is a
// permanent rejection and must not be retried.
const (
	OutcomeAdmitted  = "admitted"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
)

// OutcomeIsTerminal reports whether the station may mark the local record
// synced for this outcome. Invalid is terminal too: retrying cannot change a
// validation rejection, so the permanent-failure policy decides what the
// station does with it.
func OutcomeIsTerminal(outcome string) bool {
	switch outcome {
	case OutcomeAdmitted, OutcomeDuplicate, OutcomeInvalid:
		return true
	}
	return false
}
