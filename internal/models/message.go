package models

// MessageKind says what a message is attached to.
type MessageKind string

const (
	MessageKindGeneral    MessageKind = "general"
	MessageKindBroker     MessageKind = "broker"
	MessageKindInvestment MessageKind = "investment"
	MessageKindPortfolio  MessageKind = "portfolio"
)

// Message is a team note, optionally attached to a broker, investment or
// portfolio, optionally replying to another message.
type Message struct {
	Base
	Content      string      `gorm:"type:text;not null" json:"content"`
	AuthorID     string      `gorm:"type:uuid;not null;index" json:"author_id"`
	Kind         MessageKind `gorm:"not null;default:'general'" json:"kind"`
	BrokerID     *string     `gorm:"type:uuid;index" json:"broker_id,omitempty"`
	InvestmentID *string     `gorm:"type:uuid;index" json:"investment_id,omitempty"`
	PortfolioID  *string     `gorm:"type:uuid;index" json:"portfolio_id,omitempty"`
	ParentID     *string     `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Author  *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Replies []Message `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}
