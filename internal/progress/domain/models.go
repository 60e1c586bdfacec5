package domain

// Summary is the headline shown to every operator.
type Summary struct {
	UnassignedAttachments int64 `json:"unassigned_attachments"`
	PendingDataEntry      int64 `json:"pending_data_entry"`
	PendingConfirmation   int64 `json:"pending_confirmation"`
}
