package request

type CreateTransfer struct {
	Type    string `json:"type" validate:"required,oneof=backup restore"`
	FromURL string `json:"from_url" validate:"required,url"`
	ToURL   string `json:"to_url" validate:"required,url"`
}

type MarkProgress struct {
	ProcessedBytes int64 `json:"processed_bytes" validate:"gte=0"`
}

type AppendTransferLog struct {
	Message   string `json:"message" validate:"required"`
	Level     string `json:"level" validate:"omitempty,oneof=info warning error internal"`
	Transient bool   `json:"transient"`
}
