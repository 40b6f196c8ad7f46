package enums

import "slices"

type OutboxAggregateType string

const (
	AggregateAgreement     OutboxAggregateType = "agreement"
	AggregateSignatureLink OutboxAggregateType = "signature_link"
)

var aggregateTypes = []OutboxAggregateType{AggregateAgreement, AggregateSignatureLink}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, "aggregate type", raw)
}

type OutboxEventType string

const (
	EventAgreementCreated  OutboxEventType = "agreement_created"
	EventAgreementUpdated  OutboxEventType = "agreement_updated"
	EventAgreementDeleted  OutboxEventType = "agreement_deleted"
	EventAgreementSent     OutboxEventType = "agreement_sent"
	EventAgreementSigned   OutboxEventType = "agreement_signed"
	EventSignatureReplaced OutboxEventType = "signature_replaced"
	EventLinksExpired      OutboxEventType = "links_expired"
)

var eventTypes = []OutboxEventType{
	EventAgreementCreated,
	EventAgreementUpdated,
	EventAgreementDeleted,
	EventAgreementSent,
	EventAgreementSigned,
	EventSignatureReplaced,
	EventLinksExpired,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

// OutboxEventTypes lists every event the outbox accepts.
func OutboxEventTypes() []OutboxEventType { return slices.Clone(eventTypes) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parse(eventTypes, "event type", raw)
}

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	// retries ran out on a transient error
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// bad envelope or unroutable event
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
