package request

type CreateGroup struct {
	Name        string `json:"name" validate:"required,slug"`
	LogInputURL string `json:"log_input_url" validate:"omitempty,url"`
	BackupLimit int    `json:"backup_limit" validate:"gte=0"`
}
