package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/timeseries"
	"brokerfolio/internal/valuation"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, username, password, fullName string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// ActivityFilter holds optional filters for listing activity.
type ActivityFilter struct {
	UserID     string
	EntityType string
	Action     string
	From       *time.Time
	To         *time.Time
}

// Notifications is the unread activity feed for one user.
type Notifications struct {
	Unread int64                `json:"unread"`
	Items  []models.ActivityLog `json:"items"`
}

// ActivityServicer records and queries the team activity log.
type ActivityServicer interface {
	Log(userID, action, entityType, entityID, entityName, ipAddress string, details map[string]interface{})
	ListActivity(filter ActivityFilter, page pagination.PageRequest) (*pagination.PageResponse[models.ActivityLog], error)
	ActivityBetween(from, to time.Time) ([]models.ActivityLog, error)
	Notifications(userID string, limit int) (*Notifications, error)
	MarkNotificationsRead(userID string, at time.Time) error
}

// BrokerInput carries the editable fields of a broker.
type BrokerInput struct {
	Name           string
	Description    string
	Website        string
	Phone          string
	Email          string
	LogoURL        string
	CommissionRate decimal.Decimal
}

// BrokerServicer defines the contract for brokers and their ratings.
type BrokerServicer interface {
	CreateBroker(userID string, in BrokerInput) (*models.Broker, error)
	ListBrokers(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error)
	GetBrokerByID(id string) (*models.Broker, error)
	UpdateBroker(id string, in BrokerInput) (*models.Broker, error)
	DeleteBroker(id string) error
	RateBroker(brokerID, userID string, category models.RatingCategory, score int, comment string) (*models.BrokerRating, error)
	GetRatings(brokerID string) ([]models.BrokerRating, error)
	GetRatingSummary(brokerID string) (*valuation.RatingSummary, error)
}

// InstrumentInput carries the fields of a new instrument.
type InstrumentInput struct {
	Symbol   string
	Name     string
	Category models.InstrumentCategory
	Market   string
	Currency string
	Price    *decimal.Decimal
}

// InstrumentServicer defines the contract for instruments and their price history.
type InstrumentServicer interface {
	CreateInstrument(in InstrumentInput) (*models.Instrument, error)
	ListInstruments(search string, category models.InstrumentCategory, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error)
	ListAllInstruments() ([]models.Instrument, error)
	GetInstrumentByID(id string) (*models.Instrument, error)
	GetInstrumentBySymbol(symbol string) (*models.Instrument, error)
	DeleteInstrument(id string) error
	SetPrice(id string, price decimal.Decimal, volume *int64, at time.Time) (*models.Instrument, error)
	RecordPrice(instrumentID string, price decimal.Decimal, volume *int64, date time.Time) (*models.PriceSample, error)
	GetPriceHistory(instrumentID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.PriceSample], error)
	GetRecentHistory(instrumentID string, days int) ([]models.PriceSample, error)
	SeedDefaultBonds() ([]models.Instrument, error)
}

// HoldingInput carries the fields of a holding. Either InstrumentID or Symbol
// identifies the instrument; an unknown symbol creates the instrument.
type HoldingInput struct {
	InstrumentID  string
	Symbol        string
	Name          string
	Category      models.InstrumentCategory
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  time.Time
	Notes         string
}

// ValueHistory is a portfolio's reconstructed value series and its metrics.
type ValueHistory struct {
	PortfolioID string             `json:"portfolio_id"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Series      timeseries.Series  `json:"series"`
	Metrics     timeseries.Metrics `json:"metrics"`
}

// PortfolioServicer defines the contract for portfolios and holdings.
type PortfolioServicer interface {
	CreatePortfolio(userID, brokerID, name, description string) (*models.Portfolio, error)
	ListPortfolios(brokerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error)
	GetPortfolioByID(id string) (*models.Portfolio, error)
	UpdatePortfolio(id, brokerID, name, description string) (*models.Portfolio, error)
	DeletePortfolio(id string) error
	AddHolding(portfolioID string, in HoldingInput) (*models.Holding, error)
	UpdateHolding(portfolioID, holdingID string, in HoldingInput) (*models.Holding, error)
	RemoveHolding(portfolioID, holdingID string) error
	GetHoldings(portfolioID string) ([]models.Holding, error)
	GetPositions(portfolioID string) ([]valuation.Position, error)
	GetValuation(portfolioID string) (*valuation.PortfolioSnapshot, error)
	GetValueHistory(portfolioID string, from, to *time.Time) (*ValueHistory, error)
}

// InvestmentInput carries the editable fields of a fixed-term record.
type InvestmentInput struct {
	Name         string
	Type         models.InvestmentType
	Principal    decimal.Decimal
	Currency     string
	InterestRate decimal.NullDecimal
	StartDate    *time.Time
	EndDate      *time.Time
	Status       models.InvestmentStatus
	BrokerID     *string
	Notes        string
}

// InvestmentFilter holds optional filters for listing fixed-term records.
type InvestmentFilter struct {
	BrokerID string
	Type     models.InvestmentType
	Status   models.InvestmentStatus
}

// InvestmentServicer defines the contract for fixed-term records.
type InvestmentServicer interface {
	CreateInvestment(userID string, in InvestmentInput) (*models.Investment, error)
	ListInvestments(filter InvestmentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error)
	GetInvestmentByID(id string) (*models.Investment, error)
	UpdateInvestment(id string, in InvestmentInput) (*models.Investment, error)
	DeleteInvestment(id string) error
	UpcomingMaturities(now time.Time, limit int) ([]models.Investment, error)
}

// MessageInput carries the fields of a new message.
type MessageInput struct {
	Content      string
	Kind         models.MessageKind
	BrokerID     *string
	InvestmentID *string
	PortfolioID  *string
	ParentID     *string
}

// MessageFilter holds optional filters for listing threads.
type MessageFilter struct {
	Kind         models.MessageKind
	BrokerID     string
	InvestmentID string
	PortfolioID  string
}

// MessageServicer defines the contract for threaded team messages.
type MessageServicer interface {
	PostMessage(authorID string, in MessageInput) (*models.Message, error)
	ListThreads(filter MessageFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Message], error)
	GetMessageByID(id string) (*models.Message, error)
	DeleteMessage(id, userID string, isAdmin bool) error
	MessagesBetween(from, to time.Time) ([]models.Message, error)
}

// TypeBreakdown aggregates active fixed-term records of one type.
type TypeBreakdown struct {
	Type     models.InvestmentType `json:"type"`
	Count    int                   `json:"count"`
	TotalARS decimal.Decimal       `json:"total_ars"`
	TotalUSD decimal.Decimal       `json:"total_usd"`
}

// Dashboard is the landing-page summary.
type Dashboard struct {
	ActiveInvestments  int64                         `json:"active_investments"`
	Brokers            int64                         `json:"brokers"`
	TotalARS           decimal.Decimal               `json:"total_ars"`
	TotalUSD           decimal.Decimal               `json:"total_usd"`
	FixedTermReturn    decimal.Decimal               `json:"fixed_term_return"`
	UpcomingMaturities []valuation.FixedTermSnapshot `json:"upcoming_maturities"`
	TopBrokers         []BrokerRank                  `json:"top_brokers"`
	RecentMessages     []models.Message              `json:"recent_messages"`
	ByType             []TypeBreakdown               `json:"by_type"`
}

// BrokerRank is a broker with its overall average rating.
type BrokerRank struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ExecutiveSummary is every broker's snapshot plus grand totals.
type ExecutiveSummary struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Brokers     []valuation.BrokerSnapshot `json:"brokers"`
	Totals      valuation.Totals           `json:"totals"`
	GainLossPct decimal.Decimal            `json:"gain_loss_pct"`
}

// AnalyticsServicer builds the read-only aggregates behind dashboards and reports.
type AnalyticsServicer interface {
	GetDashboard(now time.Time) (*Dashboard, error)
	GetBrokerSnapshot(brokerID string) (*valuation.BrokerSnapshot, error)
	GetExecutiveSummary(now time.Time) (*ExecutiveSummary, error)
}

// QuoteFetcher is the quote provider surface the pricing service needs.
// *quote.Client satisfies it.
type QuoteFetcher interface {
	GetPrice(ctx context.Context, symbol string) quote.Result
	GetPrices(ctx context.Context, symbols []string) map[string]quote.Result
	History(ctx context.Context, symbol string, from, to time.Time) ([]quote.HistoryPoint, error)
	TestConnection(ctx context.Context, symbol string) quote.Result
}

// RefreshResult reports one refresh cycle.
type RefreshResult struct {
	Requested int               `json:"requested"`
	Updated   int               `json:"updated"`
	Failed    map[string]string `json:"failed,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Duration  time.Duration     `json:"duration_ns"`
}

// ImportResult reports a historical import.
type ImportResult struct {
	Instruments int               `json:"instruments"`
	Samples     int               `json:"samples"`
	Skipped     []string          `json:"skipped,omitempty"`
	Failed      map[string]string `json:"failed,omitempty"`
}

// PriceInput is one externally supplied price for a symbol.
type PriceInput struct {
	Symbol string
	Price  decimal.Decimal
	Volume *int64
	Date   time.Time
}

// PricingServicer drives quote fetching and price recording.
type PricingServicer interface {
	RefreshPrices(ctx context.Context) (*RefreshResult, error)
	ImportHistory(ctx context.Context, days int, pause time.Duration) (*ImportResult, error)
	Quote(ctx context.Context, symbol string) (*quote.Result, error)
	TestConnection(ctx context.Context) (*quote.Result, error)
	RecordPrices(prices []PriceInput) (int, error)
}
