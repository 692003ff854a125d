package dynamo

// DynamoDB attribute names used in keys and expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldUpdatedAt    = "updated_at"
	fieldSubjectEmail = "subject_email"
	fieldCodeHash     = "code_hash"
	fieldConsumed     = "consumed"
	fieldExpiresAt    = "expires_at"
	fieldTTL          = "ttl"
	fieldAttemptID    = "attempt_id"
)

// Index names created by Bootstrap.
const (
	indexEmail               = "email-index"
	indexSubjectEmailAttempt = "subject_email-attempt_id-index"
)
