package services

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/fixedterm"
	"brokerfolio/internal/models"
	"brokerfolio/internal/valuation"
)

const (
	dashboardMaturities = 5
	dashboardTopBrokers = 5
	dashboardMessages   = 10
)

// analyticsService builds read-only aggregates over the record store.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// GetDashboard summarizes active fixed-term records, brokers and recent messages.
func (s *analyticsService) GetDashboard(now time.Time) (*Dashboard, error) {
	dash := &Dashboard{
		TotalARS:           decimal.Zero,
		TotalUSD:           decimal.Zero,
		FixedTermReturn:    decimal.Zero,
		UpcomingMaturities: []valuation.FixedTermSnapshot{},
		TopBrokers:         []BrokerRank{},
		RecentMessages:     []models.Message{},
		ByType:             []TypeBreakdown{},
	}

	var active []models.Investment
	if err := s.db.Where("status = ?", models.InvestmentStatusActive).Find(&active).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	dash.ActiveInvestments = int64(len(active))

	byType := map[models.InvestmentType]*TypeBreakdown{}
	for i := range active {
		inv := &active[i]
		bucket, ok := byType[inv.Type]
		if !ok {
			bucket = &TypeBreakdown{Type: inv.Type, TotalARS: decimal.Zero, TotalUSD: decimal.Zero}
			byType[inv.Type] = bucket
		}
		bucket.Count++
		if inv.Currency == "ARS" {
			dash.TotalARS = dash.TotalARS.Add(inv.Principal)
			bucket.TotalARS = bucket.TotalARS.Add(inv.Principal)
		} else {
			bucket.TotalUSD = bucket.TotalUSD.Add(inv.Principal)
			if inv.Currency == "USD" {
				dash.TotalUSD = dash.TotalUSD.Add(inv.Principal)
			}
		}
		dash.FixedTermReturn = dash.FixedTermReturn.Add(fixedterm.AccruedReturn(fixedterm.FromInvestment(inv)))
	}
	dash.FixedTermReturn = dash.FixedTermReturn.Round(2)
	for _, b := range byType {
		dash.ByType = append(dash.ByType, *b)
	}
	sort.Slice(dash.ByType, func(i, j int) bool { return dash.ByType[i].Type < dash.ByType[j].Type })

	if err := s.db.Model(&models.Broker{}).Count(&dash.Brokers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var upcoming []models.Investment
	if err := s.db.Where("status = ? AND end_date IS NOT NULL AND end_date >= ?", models.InvestmentStatusActive, models.DateOf(now)).
		Order("end_date ASC").Limit(dashboardMaturities).Find(&upcoming).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for i := range upcoming {
		dash.UpcomingMaturities = append(dash.UpcomingMaturities, valuation.SnapshotFixedTerm(&upcoming[i]))
	}

	ranks, err := s.rankBrokers()
	if err != nil {
		return nil, err
	}
	if len(ranks) > dashboardTopBrokers {
		ranks = ranks[:dashboardTopBrokers]
	}
	dash.TopBrokers = ranks

	if err := s.db.Preload("Author").Order("created_at DESC").Limit(dashboardMessages).
		Find(&dash.RecentMessages).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return dash, nil
}

// GetBrokerSnapshot computes one broker's portfolios, fixed-term records,
// ratings and totals.
func (s *analyticsService) GetBrokerSnapshot(brokerID string) (*valuation.BrokerSnapshot, error) {
	var broker models.Broker
	if err := s.db.Where("id = ?", brokerID).First(&broker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBrokerNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	snaps, err := s.snapshots([]models.Broker{broker})
	if err != nil {
		return nil, err
	}
	return &snaps[0], nil
}

// GetExecutiveSummary snapshots every broker, largest invested first, with
// grand totals.
func (s *analyticsService) GetExecutiveSummary(now time.Time) (*ExecutiveSummary, error) {
	var brokers []models.Broker
	if err := s.db.Order("name ASC").Find(&brokers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	snaps, err := s.snapshots(brokers)
	if err != nil {
		return nil, err
	}
	valuation.SortByInvested(snaps)

	totals := valuation.Totals{Invested: decimal.Zero, Current: decimal.Zero, GainLoss: decimal.Zero}
	for _, snap := range snaps {
		totals = totals.Add(snap.Totals)
	}
	return &ExecutiveSummary{
		GeneratedAt: now,
		Brokers:     snaps,
		Totals:      totals.Rounded(),
		GainLossPct: totals.GainLossPct().Round(2),
	}, nil
}

// snapshots loads everything held at the given brokers in a fixed number of
// queries and computes their snapshots in input order.
func (s *analyticsService) snapshots(brokers []models.Broker) ([]valuation.BrokerSnapshot, error) {
	out := make([]valuation.BrokerSnapshot, 0, len(brokers))
	if len(brokers) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(brokers))
	for _, b := range brokers {
		ids = append(ids, b.ID)
	}

	var ratings []models.BrokerRating
	if err := s.db.Where("broker_id IN ?", ids).Find(&ratings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	ratingsBy := map[string][]models.BrokerRating{}
	for _, r := range ratings {
		ratingsBy[r.BrokerID] = append(ratingsBy[r.BrokerID], r)
	}

	var portfolios []models.Portfolio
	if err := s.db.Where("broker_id IN ?", ids).Order("name ASC").Find(&portfolios).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	portfolioIDs := make([]string, 0, len(portfolios))
	for _, p := range portfolios {
		portfolioIDs = append(portfolioIDs, p.ID)
	}
	positions, err := loadPositions(s.db, portfolioIDs)
	if err != nil {
		return nil, err
	}
	portfoliosBy := map[string][]valuation.PortfolioPositions{}
	for _, p := range portfolios {
		portfoliosBy[p.BrokerID] = append(portfoliosBy[p.BrokerID], valuation.PortfolioPositions{
			ID:        p.ID,
			Name:      p.Name,
			BrokerID:  p.BrokerID,
			Positions: positions[p.ID],
		})
	}

	var investments []models.Investment
	if err := s.db.Where("broker_id IN ? AND status = ?", ids, models.InvestmentStatusActive).
		Order("end_date ASC").Find(&investments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	investmentsBy := map[string][]models.Investment{}
	for _, inv := range investments {
		investmentsBy[*inv.BrokerID] = append(investmentsBy[*inv.BrokerID], inv)
	}

	for i := range brokers {
		b := &brokers[i]
		out = append(out, valuation.SnapshotBroker(b,
			valuation.SummarizeRatings(ratingsBy[b.ID]),
			portfoliosBy[b.ID],
			investmentsBy[b.ID]))
	}
	return out, nil
}

// rankBrokers orders every broker by overall average rating, best first.
func (s *analyticsService) rankBrokers() ([]BrokerRank, error) {
	var brokers []models.Broker
	if err := s.db.Order("name ASC").Find(&brokers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var ratings []models.BrokerRating
	if err := s.db.Find(&ratings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	byBroker := map[string][]models.BrokerRating{}
	for _, r := range ratings {
		byBroker[r.BrokerID] = append(byBroker[r.BrokerID], r)
	}

	ranks := make([]BrokerRank, 0, len(brokers))
	for _, b := range brokers {
		summary := valuation.SummarizeRatings(byBroker[b.ID])
		ranks = append(ranks, BrokerRank{ID: b.ID, Name: b.Name, Average: summary.Average, Count: summary.Count})
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Average > ranks[j].Average })
	return ranks, nil
}
