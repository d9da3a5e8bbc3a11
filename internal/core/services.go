package core

type Services struct {
	Group    *GroupService
	Transfer *TransferService
	Schedule *ScheduleService
}

func NewServices(db DB) *Services {
	group := NewGroupService(db)
	return &Services{
		Group:    group,
		Transfer: NewTransferService(db, group),
		Schedule: NewScheduleService(db),
	}
}
