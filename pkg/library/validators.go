package library

type TreeQuery struct {
	UserID int `query:"user_id" json:"user_id" validate:"min=0"`
}
