package dto

// ReleaseDutyRequest identifies the held slot to release. The faculty
// identity comes from the authenticated token, never the payload.
type ReleaseDutyRequest struct {
	SlotID    string `json:"slot_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// ConfirmDutiesRequest finalises a faculty's selection for one exam type.
type ConfirmDutiesRequest struct {
	ExamTypeID string `json:"exam_type_id" validate:"required"`
}
