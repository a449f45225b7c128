package integration

import "context"

// JobType identifies a queued operation kind.
type JobType string

const (
	JobTypeContactUpsert    JobType = "contact_upsert"
	JobTypeConversionCreate JobType = "conversion_create"
	JobTypeTagUpdate        JobType = "tag_update"
	JobTypePartnerCreate    JobType = "partner_create"
	JobTypeOrderCreate      JobType = "order_create"
)

// JobQueue is the work-submission port. Enqueue returns once the job is
// handed off; the queue owns retry/backoff and delivers at least once, so
// handlers must tolerate redelivery where the remote operation allows it.
// Contact upserts are idempotent (keyed by email, last write wins);
// partner and order creation are not, and redelivery creates duplicate
// remote records.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType JobType, payload any) error
}

// ContactUpsertJob is the payload for JobTypeContactUpsert.
type ContactUpsertJob struct {
	Email   string        `json:"email"`
	Contact ContactUpsert `json:"contact"`
}

// ConversionJob is the payload for JobTypeConversionCreate.
type ConversionJob struct {
	Conversion Conversion `json:"conversion"`
}

// TagUpdateJob is the payload for JobTypeTagUpdate.
type TagUpdateJob struct {
	Email string   `json:"email"`
	Tags  []string `json:"tags"`
}

// PartnerCreateJob is the payload for JobTypePartnerCreate.
type PartnerCreateJob struct {
	Partner CreatePartner `json:"partner"`
}

// OrderCreateJob is the payload for JobTypeOrderCreate.
type OrderCreateJob struct {
	Order CreateOrder `json:"order"`
}
