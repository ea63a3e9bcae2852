package domain

// Classification is the outcome category of one delete sub-operation.
type Classification string

const (
	// ClassSuccess means the delete was applied.
	ClassSuccess Classification = "success"
	// ClassRetryable means a transient failure eligible for a later wave.
	ClassRetryable Classification = "retryable"
	// ClassPermanent means retrying will not help.
	ClassPermanent Classification = "permanent"
)

// Classify maps an HTTP status code to a Classification.
// 404 is Permanent: deleting an already-deleted message reports
// "not found" and is treated as settled, never as an error.
func Classify(statusCode int) Classification {
	switch statusCode {
	case 200, 204:
		return ClassSuccess
	case 429, 500, 502, 503, 504:
		return ClassRetryable
	default:
		return ClassPermanent
	}
}

// SubResult is the classified outcome of a single delete sub-operation
// inside a batch response.
type SubResult struct {
	ID         MessageID
	StatusCode int
	Class      Classification
}
