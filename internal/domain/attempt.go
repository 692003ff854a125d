package domain

import "time"

// LoginAttempt is one immutable password submission record.
// PK: attempt_id (ULID). GSI: subject_email + attempt_id, sparse: a record
// without an email (malformed submission) is stored but not indexed.
type LoginAttempt struct {
	AttemptID             string    `json:"id" dynamodbav:"attempt_id"`
	SubjectEmail          string    `json:"subject_email" dynamodbav:"subject_email,omitempty"`
	CredentialFingerprint string    `json:"credential_fingerprint" dynamodbav:"credential_fingerprint"`
	Success               bool      `json:"success" dynamodbav:"success"`
	IPAddress             string    `json:"ip_address" dynamodbav:"ip_address"`
	UserAgent             string    `json:"user_agent" dynamodbav:"user_agent"`
	CreatedAt             time.Time `json:"created" dynamodbav:"created_at"`
}

// OtpAttempt is one immutable code submission record.
// PK: attempt_id (ULID). GSI: subject_email + attempt_id, sparse.
type OtpAttempt struct {
	AttemptID       string    `json:"id" dynamodbav:"attempt_id"`
	SubjectEmail    string    `json:"subject_email" dynamodbav:"subject_email,omitempty"`
	CodeFingerprint string    `json:"code_fingerprint" dynamodbav:"code_fingerprint"`
	Success         bool      `json:"success" dynamodbav:"success"`
	IPAddress       string    `json:"ip_address" dynamodbav:"ip_address"`
	UserAgent       string    `json:"user_agent" dynamodbav:"user_agent"`
	CreatedAt       time.Time `json:"created" dynamodbav:"created_at"`
}
