package reconciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// suggestWindowDays bounds the candidate pool around the bank transaction
// date when building manual-match suggestions.
const suggestWindowDays = 30

// Matchable entity types and the record types behind them.
var matchableTypes = map[string]string{
	"settlement":   models.RecordSettlement,
	"expense":      models.RecordExpense,
	"wallet_topup": models.RecordWalletTopup,
}

var (
	ErrBankTransactionAlreadyMatched = errors.New("bank transaction already carries an active match")
	ErrEntityAlreadyMatched          = errors.New("entity already carries an active match")
)

// Matcher reconciles bank statement lines against internal financial records.
// Auto-matching pairs only unambiguous exact-amount candidates; anything with
// more than one candidate is deferred to a human, never guessed.
type Matcher struct {
	bankTxs *repository.BankTransactionRepository
	records *repository.FinancialRecordRepository
	links   *repository.MatchLinkRepository
	log     *zap.Logger
}

func NewMatcher(
	bankTxs *repository.BankTransactionRepository,
	records *repository.FinancialRecordRepository,
	links *repository.MatchLinkRepository,
	log *zap.Logger,
) *Matcher {
	return &Matcher{bankTxs: bankTxs, records: records, links: links, log: log}
}

// AutoMatchResult tallies one auto-match run.
type AutoMatchResult struct {
	MatchedCount       int `json:"matched_count"`
	SkippedCount       int `json:"skipped_count"`
	NoCandidate        int `json:"no_candidate"`
	MultipleCandidates int `json:"multiple_candidates"`
	AlreadyMatched     int `json:"already_matched"`
}

// AutoMatch links every unmatched bank row in the window that has exactly one
// internal record with the same signed amount. Deposits only pair with inflow
// records, withdrawals with outflow ones. Zero candidates and multi-candidate
// rows are counted and left alone.
func (m *Matcher) AutoMatch(ownerID string, from, to time.Time) (AutoMatchResult, error) {
	var result AutoMatchResult

	bankTxs, err := m.bankTxs.FindUnmatchedInRange(ownerID, from, to)
	if err != nil {
		return result, err
	}
	records, err := m.records.FindUnmatchedInRange(ownerID, recordTypeList(), from, to)
	if err != nil {
		return result, err
	}

	// Bucket candidates by direction + absolute minor-unit amount.
	type bucketKey struct {
		inflow bool
		amount int64
	}
	buckets := make(map[bucketKey][]*models.FinancialRecord)
	for i := range records {
		rec := &records[i]
		key := bucketKey{rec.Inflow(), amountKey(rec.Amount)}
		buckets[key] = append(buckets[key], rec)
	}

	consumed := make(map[uuid.UUID]bool)

	for i := range bankTxs {
		tx := &bankTxs[i]
		key := bucketKey{tx.Amount > 0, amountKey(abs(tx.Amount))}
		pool := buckets[key]

		var candidates []*models.FinancialRecord
		for _, rec := range pool {
			if !consumed[rec.ID] {
				candidates = append(candidates, rec)
			}
		}

		switch {
		case len(pool) > 0 && len(candidates) == 0:
			// Every candidate was consumed by an earlier row in this run.
			result.AlreadyMatched++
			result.SkippedCount++
		case len(candidates) == 0:
			result.NoCandidate++
			result.SkippedCount++
		case len(candidates) > 1:
			// Never guess between equal-amount candidates.
			result.MultipleCandidates++
			result.SkippedCount++
		default:
			rec := candidates[0]
			if err := m.createLink(tx, rec, 100, models.MatchedByAuto, ""); err != nil {
				return result, err
			}
			consumed[rec.ID] = true
			result.MatchedCount++
		}
	}

	m.log.Info("auto-match run finished",
		zap.String("owner_id", ownerID),
		zap.Int("matched", result.MatchedCount),
		zap.Int("no_candidate", result.NoCandidate),
		zap.Int("multiple_candidates", result.MultipleCandidates))
	return result, nil
}

// Suggestion is one ranked manual-match candidate. Suggestions never create
// links by themselves; a human confirms through CreateManualMatch.
type Suggestion struct {
	Record      models.FinancialRecord `json:"record"`
	Score       float64                `json:"score"`
	AmountScore float64                `json:"amount_score"`
	DateScore   float64                `json:"date_score"`
	TextScore   float64                `json:"text_score"`
	Label       string                 `json:"label"`
}

// Suggest ranks every unmatched internal record near the bank transaction by
// amount closeness, date proximity and text overlap. Exact amount on the same
// day scores 100; all other candidates land strictly below, ordered by
// descending score with ties broken by most recent date.
func (m *Matcher) Suggest(bankTxID uuid.UUID) ([]Suggestion, error) {
	tx, err := m.bankTxs.GetByID(bankTxID)
	if err != nil {
		return nil, err
	}
	if link, err := m.links.ActiveByBankTransaction(tx.ID); err != nil {
		return nil, err
	} else if link != nil {
		return nil, ErrBankTransactionAlreadyMatched
	}

	from := tx.TransactionDate.AddDate(0, 0, -suggestWindowDays)
	to := tx.TransactionDate.AddDate(0, 0, suggestWindowDays)
	records, err := m.records.FindUnmatchedInRange(tx.OwnerID, recordTypeList(), from, to)
	if err != nil {
		return nil, err
	}

	inflow := tx.Amount > 0
	var suggestions []Suggestion
	for _, rec := range records {
		if rec.Inflow() != inflow {
			continue
		}

		amountScore := amountCloseness(tx.Amount, rec.Amount)
		if amountScore == 0 {
			continue
		}
		dateScore := computeDateScore(tx.TransactionDate, rec.OccurredAt)
		textScore := computeTextSimilarity(tx.Description, rec.Descriptor+" "+rec.Platform+" "+rec.ExternalID)

		score := weightAmount*amountScore + weightDate*dateScore + weightText*textScore
		label := "Possible Match"
		if amountScore == 100 && sameDay(tx.TransactionDate, rec.OccurredAt) {
			score = 100
			label = "Exact Match"
		} else if score >= 99 {
			score = 99
		}

		suggestions = append(suggestions, Suggestion{
			Record:      rec,
			Score:       score,
			AmountScore: amountScore,
			DateScore:   dateScore,
			TextScore:   textScore,
			Label:       label,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Record.OccurredAt.After(suggestions[j].Record.OccurredAt)
	})
	return suggestions, nil
}

// CreateManualMatch links a bank transaction to an entity after a human
// confirmation. Both sides must be free of active links (1:1 pairing).
func (m *Matcher) CreateManualMatch(ownerID string, bankTxID uuid.UUID, entityType string, entityID uuid.UUID, amount float64, notes string) (*models.MatchLink, error) {
	recordType, ok := matchableTypes[entityType]
	if !ok {
		return nil, fmt.Errorf("entity type %q is not matchable", entityType)
	}

	tx, err := m.bankTxs.GetByID(bankTxID)
	if err != nil {
		return nil, err
	}
	if tx.OwnerID != ownerID {
		return nil, fmt.Errorf("bank transaction not found for owner")
	}
	if link, err := m.links.ActiveByBankTransaction(tx.ID); err != nil {
		return nil, err
	} else if link != nil {
		return nil, ErrBankTransactionAlreadyMatched
	}

	rec, err := m.records.GetByID(entityID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID || rec.RecordType != recordType {
		return nil, fmt.Errorf("entity not found for owner")
	}
	if link, err := m.links.ActiveByEntity(rec.ID); err != nil {
		return nil, err
	} else if link != nil {
		return nil, ErrEntityAlreadyMatched
	}

	if err := m.createLinkManual(tx, rec, amount, notes); err != nil {
		return nil, err
	}
	return m.links.ActiveByBankTransaction(tx.ID)
}

// Unmatch releases the active link on a bank transaction, freeing both sides.
// The link row stays, deactivated, as the audit trail.
func (m *Matcher) Unmatch(ownerID string, bankTxID uuid.UUID) error {
	tx, err := m.bankTxs.GetByID(bankTxID)
	if err != nil {
		return err
	}
	if tx.OwnerID != ownerID {
		return fmt.Errorf("bank transaction not found for owner")
	}
	link, err := m.links.ActiveByBankTransaction(tx.ID)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("bank transaction has no active match")
	}
	if err := m.links.Release(link.ID); err != nil {
		return err
	}
	return m.bankTxs.UpdateStatus(tx.ID, models.TxUnmatched)
}

func (m *Matcher) createLink(tx *models.BankTransaction, rec *models.FinancialRecord, score float64, matchedBy, notes string) error {
	details, _ := json.Marshal(map[string]interface{}{
		"bank_description": tx.Description,
		"record_platform":  rec.Platform,
		"record_external":  rec.ExternalID,
		"amount":           rec.Amount,
	})
	link := &models.MatchLink{
		ID:                uuid.New(),
		OwnerID:           tx.OwnerID,
		BankTransactionID: tx.ID,
		EntityType:        entityTypeFor(rec.RecordType),
		EntityID:          rec.ID,
		MatchedAmount:     rec.Amount,
		MatchScore:        score,
		MatchedBy:         matchedBy,
		Notes:             notes,
		Details:           details,
		Active:            true,
		CreatedAt:         time.Now(),
	}
	if err := m.links.Create(link); err != nil {
		return err
	}
	return m.bankTxs.UpdateStatus(tx.ID, models.TxMatched)
}

func (m *Matcher) createLinkManual(tx *models.BankTransaction, rec *models.FinancialRecord, amount float64, notes string) error {
	details, _ := json.Marshal(map[string]interface{}{
		"bank_description": tx.Description,
		"record_platform":  rec.Platform,
		"record_external":  rec.ExternalID,
		"amount":           amount,
	})
	link := &models.MatchLink{
		ID:                uuid.New(),
		OwnerID:           tx.OwnerID,
		BankTransactionID: tx.ID,
		EntityType:        entityTypeFor(rec.RecordType),
		EntityID:          rec.ID,
		MatchedAmount:     amount,
		MatchScore:        100,
		MatchedBy:         models.MatchedByManual,
		Notes:             notes,
		Details:           details,
		Active:            true,
		CreatedAt:         time.Now(),
	}
	if err := m.links.Create(link); err != nil {
		return err
	}
	return m.bankTxs.UpdateStatus(tx.ID, models.TxMatched)
}

func entityTypeFor(recordType string) string {
	for entity, rec := range matchableTypes {
		if rec == recordType {
			return entity
		}
	}
	return recordType
}

func recordTypeList() []string {
	types := make([]string, 0, len(matchableTypes))
	for _, rec := range matchableTypes {
		types = append(types, rec)
	}
	return types
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
