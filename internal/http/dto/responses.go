package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type FeesResponse struct {
	Network   string `json:"network"`
	Token     string `json:"token"`
	Available string `json:"available"`
}

type ScanResponse struct {
	Refunded int `json:"refunded"`
}
