// Package adminpb holds the admin surface's wire messages, hand
// authored in the legacy protoc-gen-go v1 struct-tag shape
// (Reset/String/ProtoMessage plus `protobuf:"..."` tags) so they
// satisfy github.com/golang/protobuf's proto.Message without a protoc
// run in this environment. Field numbering follows proto3 conventions
// for if/when these are regenerated from an actual .proto file.
package adminpb

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Compile-time assertions that every message satisfies golang/protobuf's
// legacy proto.Message interface (Reset/String/ProtoMessage), the same
// contract protoc-gen-go v1 output implements.
var (
	_ proto.Message = (*WindowCurrentRequest)(nil)
	_ proto.Message = (*WindowMessage)(nil)
	_ proto.Message = (*WindowForceCloseRequest)(nil)
	_ proto.Message = (*WindowRollbackRequest)(nil)
	_ proto.Message = (*ReconciliationTriggerRequest)(nil)
	_ proto.Message = (*ReconciliationTriggerResponse)(nil)
	_ proto.Message = (*ReconciliationSummaryRequest)(nil)
	_ proto.Message = (*SeverityTierCount)(nil)
	_ proto.Message = (*ReconciliationSummaryResponse)(nil)
	_ proto.Message = (*PaymentStatusRequest)(nil)
	_ proto.Message = (*DecisionEntryMessage)(nil)
	_ proto.Message = (*PaymentStatusResponse)(nil)
)

// WindowCurrentRequest is window.current's request: the region to look
// up the currently open clearing window for.
type WindowCurrentRequest struct {
	Region string `protobuf:"bytes,1,opt,name=region,proto3" json:"region,omitempty"`
}

func (m *WindowCurrentRequest) Reset()         { *m = WindowCurrentRequest{} }
func (m *WindowCurrentRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*WindowCurrentRequest) ProtoMessage()    {}

// WindowMessage is the wire shape of one clearing window, returned by
// window.current, window.force_close, and window.rollback.
type WindowMessage struct {
	Id           string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Region       string `protobuf:"bytes,2,opt,name=region,proto3" json:"region,omitempty"`
	Status       string `protobuf:"bytes,3,opt,name=status,proto3" json:"status,omitempty"`
	CutoffUnix   int64  `protobuf:"varint,4,opt,name=cutoff_unix,json=cutoffUnix,proto3" json:"cutoff_unix,omitempty"`
	GraceSeconds int64  `protobuf:"varint,5,opt,name=grace_seconds,json=graceSeconds,proto3" json:"grace_seconds,omitempty"`
	OpenedAtUnix int64  `protobuf:"varint,6,opt,name=opened_at_unix,json=openedAtUnix,proto3" json:"opened_at_unix,omitempty"`
	ClosedAtUnix int64  `protobuf:"varint,7,opt,name=closed_at_unix,json=closedAtUnix,proto3" json:"closed_at_unix,omitempty"`
}

func (m *WindowMessage) Reset()         { *m = WindowMessage{} }
func (m *WindowMessage) String() string { return fmt.Sprintf("%+v", *m) }
func (*WindowMessage) ProtoMessage()    {}

// WindowForceCloseRequest is window.force_close's request.
type WindowForceCloseRequest struct {
	WindowId string `protobuf:"bytes,1,opt,name=window_id,json=windowId,proto3" json:"window_id,omitempty"`
}

func (m *WindowForceCloseRequest) Reset()         { *m = WindowForceCloseRequest{} }
func (m *WindowForceCloseRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*WindowForceCloseRequest) ProtoMessage()    {}

// WindowRollbackRequest is window.rollback's request.
type WindowRollbackRequest struct {
	WindowId string `protobuf:"bytes,1,opt,name=window_id,json=windowId,proto3" json:"window_id,omitempty"`
}

func (m *WindowRollbackRequest) Reset()         { *m = WindowRollbackRequest{} }
func (m *WindowRollbackRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*WindowRollbackRequest) ProtoMessage()    {}

// ReconciliationTriggerRequest is reconciliation.trigger's request: a
// manual Tier-1 pass for one account, or a Tier-2 poll of every active
// account (the account id is still required). Tier-3 statement ingest
// carries a full entry batch and isn't triggered ad hoc over this RPC).
type ReconciliationTriggerRequest struct {
	AccountId string `protobuf:"bytes,1,opt,name=account_id,json=accountId,proto3" json:"account_id,omitempty"`
	Tier      int32  `protobuf:"varint,2,opt,name=tier,proto3" json:"tier,omitempty"`
}

func (m *ReconciliationTriggerRequest) Reset()         { *m = ReconciliationTriggerRequest{} }
func (m *ReconciliationTriggerRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ReconciliationTriggerRequest) ProtoMessage()    {}

// ReconciliationTriggerResponse acknowledges a manually triggered pass.
// Severity always holds "triggered"; the severity the pass observed is
// not returned here and shows up in reconciliation.summary instead.
type ReconciliationTriggerResponse struct {
	Severity string `protobuf:"bytes,1,opt,name=severity,proto3" json:"severity,omitempty"`
}

func (m *ReconciliationTriggerResponse) Reset()         { *m = ReconciliationTriggerResponse{} }
func (m *ReconciliationTriggerResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ReconciliationTriggerResponse) ProtoMessage()    {}

// ReconciliationSummaryRequest is reconciliation.summary's request; it
// takes no parameters, every recorded snapshot is tallied.
type ReconciliationSummaryRequest struct{}

func (m *ReconciliationSummaryRequest) Reset()         { *m = ReconciliationSummaryRequest{} }
func (m *ReconciliationSummaryRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ReconciliationSummaryRequest) ProtoMessage()    {}

// SeverityTierCount is one (tier, severity) bucket's count, flattened
// out of the nested domain map since proto3 doesn't support maps of
// maps directly.
type SeverityTierCount struct {
	Tier     int32  `protobuf:"varint,1,opt,name=tier,proto3" json:"tier,omitempty"`
	Severity string `protobuf:"bytes,2,opt,name=severity,proto3" json:"severity,omitempty"`
	Count    int32  `protobuf:"varint,3,opt,name=count,proto3" json:"count,omitempty"`
}

func (m *SeverityTierCount) Reset()         { *m = SeverityTierCount{} }
func (m *SeverityTierCount) String() string { return fmt.Sprintf("%+v", *m) }
func (*SeverityTierCount) ProtoMessage()    {}

// ReconciliationSummaryResponse is reconciliation.summary's response:
// counts by severity and by tier (§9's supplemented feature).
type ReconciliationSummaryResponse struct {
	Counts []*SeverityTierCount `protobuf:"bytes,1,rep,name=counts,proto3" json:"counts,omitempty"`
	Total  int32                `protobuf:"varint,2,opt,name=total,proto3" json:"total,omitempty"`
}

func (m *ReconciliationSummaryResponse) Reset()         { *m = ReconciliationSummaryResponse{} }
func (m *ReconciliationSummaryResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ReconciliationSummaryResponse) ProtoMessage()    {}

// PaymentStatusRequest is payment.status's request.
type PaymentStatusRequest struct {
	PaymentId string `protobuf:"bytes,1,opt,name=payment_id,json=paymentId,proto3" json:"payment_id,omitempty"`
}

func (m *PaymentStatusRequest) Reset()         { *m = PaymentStatusRequest{} }
func (m *PaymentStatusRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*PaymentStatusRequest) ProtoMessage()    {}

// DecisionEntryMessage is one vote in a payment's append-only decision
// timeline.
type DecisionEntryMessage struct {
	Service        string `protobuf:"bytes,1,opt,name=service,proto3" json:"service,omitempty"`
	Vote           string `protobuf:"bytes,2,opt,name=vote,proto3" json:"vote,omitempty"`
	Reason         string `protobuf:"bytes,3,opt,name=reason,proto3" json:"reason,omitempty"`
	RecordedAtUnix int64  `protobuf:"varint,4,opt,name=recorded_at_unix,json=recordedAtUnix,proto3" json:"recorded_at_unix,omitempty"`
}

func (m *DecisionEntryMessage) Reset()         { *m = DecisionEntryMessage{} }
func (m *DecisionEntryMessage) String() string { return fmt.Sprintf("%+v", *m) }
func (*DecisionEntryMessage) ProtoMessage()    {}

// PaymentStatusResponse is payment.status's response: the payment's
// current state plus its full decision timeline (§9's supplemented
// feature).
type PaymentStatusResponse struct {
	PaymentId string                  `protobuf:"bytes,1,opt,name=payment_id,json=paymentId,proto3" json:"payment_id,omitempty"`
	Status    string                  `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
	Currency  string                  `protobuf:"bytes,3,opt,name=currency,proto3" json:"currency,omitempty"`
	Payer     string                  `protobuf:"bytes,4,opt,name=payer,proto3" json:"payer,omitempty"`
	Payee     string                  `protobuf:"bytes,5,opt,name=payee,proto3" json:"payee,omitempty"`
	Amount    string                  `protobuf:"bytes,6,opt,name=amount,proto3" json:"amount,omitempty"`
	Outcome   string                  `protobuf:"bytes,7,opt,name=outcome,proto3" json:"outcome,omitempty"`
	Entries   []*DecisionEntryMessage `protobuf:"bytes,8,rep,name=entries,proto3" json:"entries,omitempty"`
}

func (m *PaymentStatusResponse) Reset()         { *m = PaymentStatusResponse{} }
func (m *PaymentStatusResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*PaymentStatusResponse) ProtoMessage()    {}
