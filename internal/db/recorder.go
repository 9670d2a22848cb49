// Package db persists the Notifier capability's audit trail: opportunity
// sightings, execution result transitions, and periodic summaries. It is a
// one-way log for post-hoc analysis; nothing in the hot path reads it back.
package db

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/executor"
	"github.com/onrollup/lstarb/pkg/notifier"
)

// OpportunityRecord is the database model for a detected Opportunity.
type OpportunityRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	TokenName string `gorm:"type:varchar(64);not null"`
	Token string `gorm:"type:varchar(42);not null;index"`
	BuyVenue int `gorm:"not null"`
	SellVenue int `gorm:"not null"`
	SpreadBps int64 `gorm:"not null"`
	ExpectedProfit string `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	TradeAmount string `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	Tier string `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (OpportunityRecord) TableName() string { return "opportunities" }

// ExecutionResultRecord is the database model for one ExecutionResult
// transition.
type ExecutionResultRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	CorrelationID string `gorm:"type:varchar(36);index"`
	Token string `gorm:"type:varchar(42);not null;index"`
	Kind string `gorm:"type:varchar(16);not null;index;comment:submitted|confirmed|reverted|aborted|failed"`
	Hash string `gorm:"type:varchar(66)"`
	Profit string `gorm:"type:varchar(78);comment:big.Int as string"`
	ExpectedProfit string `gorm:"type:varchar(78);comment:big.Int as string"`
	ActualProfit string `gorm:"type:varchar(78);comment:big.Int as string"`
	Reason string `gorm:"type:varchar(256)"`
	ResubmitCount int `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ExecutionResultRecord) TableName() string { return "execution_results" }

// SummaryRecord is one periodic Stats snapshot.
type SummaryRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	OpportunitiesFound int64 `gorm:"not null"`
	SimulationsPassed int64 `gorm:"not null"`
	TxsSubmitted int64 `gorm:"not null"`
	TxsConfirmed int64 `gorm:"not null"`
	TxsReverted int64 `gorm:"not null"`
	TotalProfit string `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	TotalGasSpent string `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SummaryRecord) TableName() string { return "summaries" }

// MySQLNotifier implements notifier.Notifier using GORM and MySQL: a thin
// repository over a handful of append-only tables.
type MySQLNotifier struct {
	db *gorm.DB
}

var _ notifier.Notifier = (*MySQLNotifier)(nil)

// NewMySQLNotifier opens a MySQL connection and migrates the audit schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLNotifier(dsn string) (*MySQLNotifier, error) {
	gormDB, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewMySQLNotifierWithDB(gormDB)
}

// NewMySQLNotifierWithDB wraps an existing GORM connection, migrating the
// audit schema onto it.
func NewMySQLNotifierWithDB(gormDB *gorm.DB) (*MySQLNotifier, error) {
	if err := gormDB.AutoMigrate(&OpportunityRecord{}, &ExecutionResultRecord{}, &SummaryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &MySQLNotifier{db: gormDB}, nil
}

// RecordOpportunity persists one detected Opportunity.
func (n *MySQLNotifier) RecordOpportunity(opp detector.Opportunity) {
	record := OpportunityRecord{
		Timestamp: time.Now(),
		TokenName: opp.TokenName,
		Token: opp.Token.Hex(),
		BuyVenue: int(opp.BuyVenue),
		SellVenue: int(opp.SellVenue),
		SpreadBps: opp.SpreadBps,
		ExpectedProfit: bigIntToString(opp.ExpectedProfit),
		TradeAmount: bigIntToString(opp.TradeAmount),
		Tier: opp.Tier,
	}
	if err := n.db.Create(&record).Error; err != nil {
		logRecordError("opportunity", err)
	}
}

// RecordExecutionResult persists one ExecutionResult transition.
func (n *MySQLNotifier) RecordExecutionResult(opp detector.Opportunity, result executor.Result) {
	record := ExecutionResultRecord{
		Timestamp: time.Now(),
		CorrelationID: result.CorrelationID,
		Token: opp.Token.Hex(),
		Kind: result.Kind,
		Hash: result.Hash.Hex(),
		Profit: bigIntToString(result.Profit),
		ExpectedProfit: bigIntToString(result.ExpectedProfit),
		ActualProfit: bigIntToString(result.ActualProfit),
		Reason: result.Reason,
		ResubmitCount: result.ResubmitCount,
	}
	if err := n.db.Create(&record).Error; err != nil {
		logRecordError("execution result", err)
	}
}

// PeriodicSummary persists one Stats snapshot.
func (n *MySQLNotifier) PeriodicSummary(stats notifier.Stats) {
	record := SummaryRecord{
		Timestamp: time.Now(),
		OpportunitiesFound: stats.OpportunitiesFound,
		SimulationsPassed: stats.SimulationsPassed,
		TxsSubmitted: stats.TxsSubmitted,
		TxsConfirmed: stats.TxsConfirmed,
		TxsReverted: stats.TxsReverted,
		TotalProfit: bigIntToString(stats.TotalProfit),
		TotalGasSpent: bigIntToString(stats.TotalGasSpent),
	}
	if err := n.db.Create(&record).Error; err != nil {
		logRecordError("summary", err)
	}
}

// GetLatestSummary retrieves the most recently persisted Stats snapshot.
func (n *MySQLNotifier) GetLatestSummary() (*SummaryRecord, error) {
	var record SummaryRecord
	if err := n.db.Order("timestamp DESC").First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}
	return &record, nil
}

// ExecutionResultsByToken retrieves every recorded result for a token,
// oldest first.
func (n *MySQLNotifier) ExecutionResultsByToken(token string) ([]ExecutionResultRecord, error) {
	var records []ExecutionResultRecord
	if err := n.db.Where("token = ?", token).Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get execution results: %w", err)
	}
	return records, nil
}

// Close closes the underlying database connection.
func (n *MySQLNotifier) Close() error {
	sqlDB, err := n.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func logRecordError(kind string, err error) {
	fmt.Printf("notifier: failed to record %s: %v\n", kind, err)
}
