package domain

import "strings"

// StatusBucket is the semantic class of a free-text server status.
type StatusBucket string

const (
	BucketPending   StatusBucket = "pending"
	BucketFunded    StatusBucket = "funded"
	BucketCompleted StatusBucket = "completed"
	BucketFailed    StatusBucket = "failed"
	BucketUnknown   StatusBucket = "unknown"
)

// StatusFlags holds the independent substring predicates used by the action table.
// A status such as "Funded - Awaiting Release" is funded but not completed.
// IsProcessing only affects the display bucket; the action table never reads it.
type StatusFlags struct {
	Raw          string
	IsPending    bool
	IsProcessing bool
	IsFunded     bool
	IsCompleted  bool
	IsFailed     bool
}

// Bucket collapses the flags into a single class. Terminal classes win over
// in-flight ones so "Payment Failed (was pending)" reads as failed.
func (f StatusFlags) Bucket() StatusBucket {
	switch {
	case f.IsFailed:
		return BucketFailed
	case f.IsCompleted:
		return BucketCompleted
	case f.IsFunded:
		return BucketFunded
	case f.IsPending, f.IsProcessing:
		return BucketPending
	default:
		return BucketUnknown
	}
}

// ClassifyStatus maps a raw server status to flags by case-insensitive substring match.
func ClassifyStatus(raw string) StatusFlags {
	s := strings.ToLower(strings.TrimSpace(raw))
	return StatusFlags{
		Raw:          raw,
		IsPending:    containsAny(s, "pending", "waiting"),
		IsProcessing: strings.Contains(s, "processing"),
		IsFunded:     containsAny(s, "funded", "paid"),
		IsCompleted:  containsAny(s, "completed", "released"),
		IsFailed:     containsAny(s, "failed", "cancelled", "canceled", "rejected"),
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// TimelineStep is one row of the four-step escrow progress view.
type TimelineStep struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	Date        *string `json:"date,omitempty"`
}

// Timeline renders Created -> Payment Initiated -> Funded -> Completed for tx.
func Timeline(tx *Transaction) []TimelineStep {
	if tx == nil {
		return nil
	}
	flags := tx.Flags()
	funded := flags.IsFunded || flags.IsCompleted

	return []TimelineStep{
		{ID: 1, Title: "Transaction Created", Description: "Escrow transaction initiated", Completed: true, Date: formatTime(tx.CreatedAt)},
		{ID: 2, Title: "Payment Initiated", Description: "Waiting for payment confirmation", Completed: funded, Date: formatTime(tx.PaymentInitiatedAt)},
		{ID: 3, Title: "Funds in Escrow", Description: "Payment confirmed, funds secured", Completed: funded, Date: formatTime(tx.FundedAt)},
		{ID: 4, Title: "Transaction Completed", Description: "Funds released to recipient", Completed: flags.IsCompleted, Date: formatTime(tx.CompletedAt)},
	}
}
