package notification

import "time"

// Type classifies a notification for display
type Type string

const (
	TypeOrder   Type = "order"
	TypeStock   Type = "stock"
	TypeProduct Type = "product"
	TypeSystem  Type = "system"
	TypeSuccess Type = "success"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOrder, TypeStock, TypeProduct, TypeSystem, TypeSuccess:
		return true
	}
	return false
}

// Icon returns the client icon name for the type
func (t Type) Icon() string {
	switch t {
	case TypeOrder:
		return "package"
	case TypeStock:
		return "alert-triangle"
	case TypeProduct:
		return "tag"
	case TypeSystem:
		return "info"
	case TypeSuccess:
		return "check-circle"
	}
	return ""
}

type Notification struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title" bson:"title"`
	Message   string    `json:"message" bson:"message"`
	Type      Type      `json:"type" bson:"type"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
