package request

type CreateSchedule struct {
	Name    string `json:"name" validate:"required,slug"`
	Cron    string `json:"cron" validate:"required"`
	FromURL string `json:"from_url" validate:"required,url"`
	ToURL   string `json:"to_url" validate:"required,url"`
}
