package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/audit"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

const distributorCodeLength = 12

// DistributorService moves credit down the hierarchy: master distributor to
// distributor to end user. All balance changes go through the ledger.
type DistributorService struct {
	store  store.Store
	ledger *LedgerService
	audit  *audit.Logger
	log    *zap.Logger
	now    func() time.Time
}

func NewDistributorService(st store.Store, ledger *LedgerService, auditLog *audit.Logger, log *zap.Logger) *DistributorService {
	return &DistributorService{
		store:  st,
		ledger: ledger,
		audit:  auditLog,
		log:    log.Named("distributors"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type AmountInput struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0" swaggertype:"string" example:"500.00"`
}

type DepositRequestInput struct {
	Amount  decimal.Decimal `json:"amount" validate:"required,gt=0" swaggertype:"string" example:"250.00"`
	Remarks string          `json:"remarks" validate:"max=500" example:"UPI ref 1234"`
}

type RemarksInput struct {
	Remarks string `json:"remarks" validate:"max=500" example:"Payment not received"`
}

// PromoteMaster makes the user a master distributor. Used to bootstrap the
// hierarchy at startup.
func (s *DistributorService) PromoteMaster(ctx context.Context, username string) (*models.Profile, error) {
	var profile *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserByUsername(username)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("User")
		}
		if err != nil {
			return err
		}
		profile, err = profileTx(tx, user.ID)
		if err != nil {
			return err
		}
		if profile.UserType == models.UserTypeMasterDistributor {
			return nil
		}
		profile.UserType = models.UserTypeMasterDistributor
		profile.ParentID = nil
		profile.IsActive = true
		return tx.UpdateProfile(profile)
	})
	return profile, err
}

// AssignDistributor turns an unassigned end user into a distributor under the
// master and issues them a distributor code.
func (s *DistributorService) AssignDistributor(ctx context.Context, masterID, userID int64) (*models.Profile, error) {
	var profile *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := requireRole(tx, masterID, models.UserTypeMasterDistributor); err != nil {
			return err
		}
		if masterID == userID {
			return newError(ErrValidation, "You cannot assign yourself")
		}

		var err error
		profile, err = profileTx(tx, userID)
		if err != nil {
			return err
		}
		if profile.UserType != models.UserTypeEndUser || profile.ParentID != nil {
			return newError(ErrStateConflict, "User is already part of the distributor hierarchy")
		}

		master := masterID
		profile.UserType = models.UserTypeDistributor
		profile.ParentID = &master
		profile.DistributorCode = newDistributorCode()
		profile.IsActive = true
		if err := tx.UpdateProfile(profile); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return newError(ErrStateConflict, "Distributor code collision, please retry")
			}
			return err
		}

		_, err = s.ledger.LockWalletTx(tx, DistributorWallet(userID))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation("assign_distributor", 0, fmt.Sprintf("master=%d distributor=%d code=%s", masterID, userID, profile.DistributorCode))
	return profile, nil
}

// AssignEndUser attaches an end user to the distributor.
func (s *DistributorService) AssignEndUser(ctx context.Context, distributorID, userID int64) (*models.Profile, error) {
	var profile *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := requireRole(tx, distributorID, models.UserTypeDistributor); err != nil {
			return err
		}
		if distributorID == userID {
			return newError(ErrValidation, "You cannot assign yourself")
		}

		var err error
		profile, err = profileTx(tx, userID)
		if err != nil {
			return err
		}
		if profile.UserType != models.UserTypeEndUser {
			return newError(ErrStateConflict, "Only end users can be assigned to a distributor")
		}
		if profile.ParentID != nil {
			if *profile.ParentID == distributorID {
				return nil
			}
			return newError(ErrStateConflict, "User is already assigned to another distributor")
		}

		parent := distributorID
		profile.ParentID = &parent
		return tx.UpdateProfile(profile)
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation("assign_end_user", 0, fmt.Sprintf("distributor=%d user=%d", distributorID, userID))
	return profile, nil
}

// CreditDistributor tops up a distributor wallet from outside the system.
func (s *DistributorService) CreditDistributor(ctx context.Context, masterID, distributorID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requireChild(tx, masterID, models.UserTypeMasterDistributor, distributorID, models.UserTypeDistributor); err != nil {
			return err
		}
		w, err := s.ledger.LockWalletTx(tx, DistributorWallet(distributorID))
		if err != nil {
			return err
		}

		w.TotalCredited = w.TotalCredited.Add(amount)
		master := masterID
		entry, err = s.ledger.DepositTx(tx, w, Entry{
			Kind:          models.TxCredit,
			Amount:        amount,
			Description:   "Credit from master distributor",
			RelatedUserID: &master,
		})
		return err
	})
	if err != nil {
		s.audit.LogError("credit_distributor", distributorID, err)
		return nil, err
	}

	s.ledger.Committed(entry)
	return entry, nil
}

// WithdrawFromDistributor pulls credit back from a distributor wallet.
func (s *DistributorService) WithdrawFromDistributor(ctx context.Context, masterID, distributorID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requireChild(tx, masterID, models.UserTypeMasterDistributor, distributorID, models.UserTypeDistributor); err != nil {
			return err
		}
		w, err := s.ledger.LockWalletTx(tx, DistributorWallet(distributorID))
		if err != nil {
			return err
		}

		master := masterID
		entry, err = s.ledger.WithdrawTx(tx, w, Entry{
			Kind:          models.TxDebit,
			Amount:        amount,
			Description:   "Withdrawn by master distributor",
			RelatedUserID: &master,
		})
		return err
	})
	if err != nil {
		s.audit.LogError("withdraw_distributor", distributorID, err)
		return nil, err
	}

	s.ledger.Committed(entry)
	return entry, nil
}

// DistributeToUser moves credit from the distributor wallet to one of its end
// users in one unit of work.
func (s *DistributorService) DistributeToUser(ctx context.Context, distributorID, endUserID int64, amount decimal.Decimal) ([]*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entries []*models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requireChild(tx, distributorID, models.UserTypeDistributor, endUserID, models.UserTypeEndUser); err != nil {
			return err
		}
		var err error
		entries, err = s.distributeTx(tx, distributorID, endUserID, amount,
			models.TxCredit, "Credit from distributor")
		return err
	})
	if err != nil {
		s.audit.LogError("distribute", distributorID, err)
		return nil, err
	}

	s.ledger.Committed(entries...)
	s.audit.LogTransfer(distributorID, endUserID, amount, "SUCCESS")
	return entries, nil
}

func (s *DistributorService) distributeTx(tx store.Tx, distributorID, endUserID int64, amount decimal.Decimal, creditKind models.TransactionKind, creditDesc string) ([]*models.Transaction, error) {
	from, to, err := s.ledger.LockPairTx(tx, DistributorWallet(distributorID), UserWallet(endUserID))
	if err != nil {
		return nil, err
	}

	dist, user := distributorID, endUserID
	from.TotalDistributed = from.TotalDistributed.Add(amount)
	out, err := s.ledger.WithdrawTx(tx, from, Entry{
		Kind:          models.TxDebit,
		Amount:        amount,
		Description:   fmt.Sprintf("Distributed to user #%d", endUserID),
		RelatedUserID: &user,
	})
	if err != nil {
		return nil, err
	}
	in, err := s.ledger.DepositTx(tx, to, Entry{
		Kind:          creditKind,
		Amount:        amount,
		Description:   creditDesc,
		RelatedUserID: &dist,
	})
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{out, in}, nil
}

// DistributorWallet returns the distributor's own wallet.
func (s *DistributorService) DistributorWallet(ctx context.Context, distributorID int64) (*models.Wallet, error) {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := requireRole(tx, distributorID, models.UserTypeDistributor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.ledger.EnsureWallet(ctx, DistributorWallet(distributorID))
}

// RaiseDepositRequest asks the end user's distributor for credit.
func (s *DistributorService) RaiseDepositRequest(ctx context.Context, endUserID int64, in DepositRequestInput) (*models.DepositRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var req *models.DepositRequest
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		profile, err := requireRole(tx, endUserID, models.UserTypeEndUser)
		if err != nil {
			return err
		}
		if profile.ParentID == nil {
			return newError(ErrStateConflict, "You are not assigned to a distributor")
		}

		req = &models.DepositRequest{
			EndUserID:     endUserID,
			DistributorID: *profile.ParentID,
			Amount:        in.Amount.Round(2),
			Status:        models.DepositPending,
			Remarks:       in.Remarks,
			RequestedAt:   s.now(),
		}
		return tx.CreateDepositRequest(req)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit request raised",
		zap.Int64("request_id", req.ID),
		zap.Int64("end_user_id", endUserID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return req, nil
}

// ApproveDepositRequest debits the distributor and deposits to the end user,
// then closes the request, all at once.
func (s *DistributorService) ApproveDepositRequest(ctx context.Context, distributorID, requestID int64) (*models.DepositRequest, error) {
	var (
		req     *models.DepositRequest
		entries []*models.Transaction
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = s.pendingRequestTx(tx, requestID, func(r *models.DepositRequest) bool {
			return r.DistributorID == distributorID
		})
		if err != nil {
			return err
		}

		entries, err = s.distributeTx(tx, distributorID, req.EndUserID, req.Amount,
			models.TxDeposit, fmt.Sprintf("Deposit request #%d approved", req.ID))
		if err != nil {
			return err
		}

		return s.closeRequestTx(tx, req, models.DepositApproved, distributorID)
	})
	if err != nil {
		s.audit.LogError("approve_deposit_request", distributorID, err)
		return nil, err
	}

	s.ledger.Committed(entries...)
	return req, nil
}

func (s *DistributorService) RejectDepositRequest(ctx context.Context, distributorID, requestID int64, remarks string) (*models.DepositRequest, error) {
	var req *models.DepositRequest
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = s.pendingRequestTx(tx, requestID, func(r *models.DepositRequest) bool {
			return r.DistributorID == distributorID
		})
		if err != nil {
			return err
		}
		if remarks != "" {
			req.Remarks = remarks
		}
		return s.closeRequestTx(tx, req, models.DepositRejected, distributorID)
	})
	return req, err
}

// CancelDepositRequest withdraws the end user's own pending request.
func (s *DistributorService) CancelDepositRequest(ctx context.Context, endUserID, requestID int64) (*models.DepositRequest, error) {
	var req *models.DepositRequest
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = s.pendingRequestTx(tx, requestID, func(r *models.DepositRequest) bool {
			return r.EndUserID == endUserID
		})
		if err != nil {
			return err
		}
		return s.closeRequestTx(tx, req, models.DepositCancelled, endUserID)
	})
	return req, err
}

// ListDepositRequests returns the requests the caller raised, or received when
// the caller is a distributor.
func (s *DistributorService) ListDepositRequests(ctx context.Context, userID int64, status models.DepositRequestStatus) ([]models.DepositRequest, error) {
	var out []models.DepositRequest
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		profile, err := profileTx(tx, userID)
		if err != nil {
			return err
		}
		filter := store.DepositRequestFilter{Status: status}
		switch profile.UserType {
		case models.UserTypeDistributor:
			filter.DistributorID = userID
		case models.UserTypeEndUser:
			filter.EndUserID = userID
		default:
			return newError(ErrForbidden, "Deposit requests are not available for this account")
		}
		out, err = tx.ListDepositRequests(filter)
		return err
	})
	return out, err
}

func (s *DistributorService) pendingRequestTx(tx store.Tx, requestID int64, owns func(*models.DepositRequest) bool) (*models.DepositRequest, error) {
	req, err := tx.LockDepositRequest(requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Deposit request")
	}
	if err != nil {
		return nil, err
	}
	if !owns(req) {
		return nil, notFound("Deposit request")
	}
	if req.Status != models.DepositPending {
		return nil, ErrRequestProcessed
	}
	return req, nil
}

func (s *DistributorService) closeRequestTx(tx store.Tx, req *models.DepositRequest, status models.DepositRequestStatus, by int64) error {
	now := s.now()
	processedBy := by
	req.Status = status
	req.ProcessedAt = &now
	req.ProcessedBy = &processedBy
	return tx.UpdateDepositRequest(req)
}

func profileTx(tx store.Tx, userID int64) (*models.Profile, error) {
	p, err := tx.GetProfile(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("User")
	}
	return p, err
}

func requireRole(tx store.Tx, userID int64, role models.UserType) (*models.Profile, error) {
	p, err := profileTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if p.UserType != role || !p.IsActive {
		return nil, newError(ErrForbidden, "This action requires a %s account", strings.ReplaceAll(string(role), "_", " "))
	}
	return p, nil
}

// requireChild checks the parent's role and that child sits directly under it.
func (s *DistributorService) requireChild(tx store.Tx, parentID int64, parentRole models.UserType, childID int64, childRole models.UserType) error {
	if _, err := requireRole(tx, parentID, parentRole); err != nil {
		return err
	}
	child, err := profileTx(tx, childID)
	if err != nil {
		return err
	}
	if child.UserType != childRole || child.ParentID == nil || *child.ParentID != parentID {
		return newError(ErrForbidden, "User #%d is not assigned to you", childID)
	}
	return nil
}

func newDistributorCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:distributorCodeLength]
}
