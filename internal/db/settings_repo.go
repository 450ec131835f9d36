package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"planswitch/internal/types"
)

// SecretOpener unseals the stored portal password. *security.Sealer
// satisfies it.
type SecretOpener interface {
	Open(sealed string) (types.SecretString, error)
}

// SettingsRepository reads the single portal_settings row (id = 1) and
// implements types.ConfigProvider.
type SettingsRepository struct {
	db     DBTX
	opener SecretOpener
}

// NewSettingsRepository creates a repository over portal_settings. opener
// unseals the stored portal password.
func NewSettingsRepository(db DBTX, opener SecretOpener) *SettingsRepository {
	return &SettingsRepository{db: db, opener: opener}
}

// GetRunConfig returns the stored configuration with the password unsealed.
// It returns (nil, nil) when the row does not exist yet.
func (r *SettingsRepository) GetRunConfig(ctx context.Context) (*types.RunConfig, error) {
	var (
		cfg                                 types.RunConfig
		sealed                              string
		discount, unpause, coat, churn      *string
		scheduledDate, paymentOption, locID *string
		timeoutMS                           int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT base_url, username, password_sealed,
		        user_id, service_id, access_circuit_id, location_id,
		        discount_code, unpause, coat, churn, scheduled_date, payment_option,
		        request_timeout_ms, target_plan_code
		 FROM portal_settings
		 WHERE id = 1`,
	).Scan(
		&cfg.BaseURL,
		&cfg.Username,
		&sealed,
		&cfg.IDs.UserID,
		&cfg.IDs.ServiceID,
		&cfg.IDs.AccessCircuitID,
		&locID,
		&discount,
		&unpause,
		&coat,
		&churn,
		&scheduledDate,
		&paymentOption,
		&timeoutMS,
		&cfg.TargetPlanCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load portal settings", err)
	}

	password, err := r.opener.Open(sealed)
	if err != nil {
		return nil, err
	}
	cfg.Password = password
	cfg.IDs.LocationID = deref(locID)
	cfg.DiscountCode = deref(discount)
	cfg.Unpause = deref(unpause)
	cfg.Coat = deref(coat)
	cfg.Churn = deref(churn)
	cfg.ScheduledDate = deref(scheduledDate)
	cfg.PaymentOption = deref(paymentOption)
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond
	return &cfg, nil
}

// UpdateSealedPassword replaces the stored sealed password.
func (r *SettingsRepository) UpdateSealedPassword(ctx context.Context, sealed string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE portal_settings SET password_sealed = $1, updated_at = NOW() WHERE id = 1`,
		sealed,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update portal password", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRunConfig, "portal settings have not been created", nil)
	}
	return nil
}
