package campaign

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"r2s/core/state"
	"r2s/storage"
)

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.Initialize(adminAddr, feeCollector, treasuryAddr), ErrAlreadyInitialized)

	fees, err := f.engine.Fees()
	require.NoError(t, err)
	require.Equal(t, DefaultPlatformFee, fees.PlatformFee)
	require.Equal(t, DefaultMerchantFee, fees.MerchantFee)
	require.Equal(t, DefaultEarlyWithdrawPenalty, fees.EarlyWithdrawPenalty)
	require.Equal(t, DefaultMaxDiscountRate, fees.MaxDiscountRate)
	require.Equal(t, feeCollector, fees.FeeCollector)
	require.Equal(t, treasuryAddr, fees.Treasury)

	version, err := f.engine.Version()
	require.NoError(t, err)
	require.Equal(t, InitialVersion, version)

	for _, role := range []common.Hash{DefaultAdminRole, AdminRole, OperatorRole, UpgraderRole} {
		held, err := f.engine.HasRole(role, adminAddr)
		require.NoError(t, err)
		require.True(t, held, RoleName(role))
	}
	admin, err := f.engine.RoleAdmin(MerchantRole)
	require.NoError(t, err)
	require.Equal(t, AdminRole, admin)
}

func TestUninitializedEngineRejectsWrites(t *testing.T) {
	engine := NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))

	_, err := engine.Participate(userA, 0, usdt(100))
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, engine.GrantRole(adminAddr, MerchantRole, userA), ErrNotInitialized)
	require.ErrorIs(t, engine.Pause(adminAddr), ErrNotInitialized)
	require.ErrorIs(t, engine.Initialize(common.Address{}, feeCollector, treasuryAddr), ErrZeroAddress)

	var nilEngine *Engine
	_, err = nilEngine.CreateCampaign(merchantAddr, defaultParams())
	require.Error(t, err)
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.engine.GrantRole(userA, MerchantRole, userB), ErrUnauthorized)
	require.ErrorIs(t, f.engine.GrantRole(adminAddr, MerchantRole, common.Address{}), ErrZeroAddress)

	require.NoError(t, f.engine.GrantRole(adminAddr, MerchantRole, userA))
	held, err := f.engine.HasRole(MerchantRole, userA)
	require.NoError(t, err)
	require.True(t, held)
	granted := f.events.Filter(EventTypeRoleGranted)
	require.Len(t, granted, 1)
	require.Equal(t, "MERCHANT_ROLE", granted[0].Attributes["roleName"])
	require.Equal(t, userA.Hex(), granted[0].Attributes["account"])

	// Granting a held role is silent.
	f.events.Reset()
	require.NoError(t, f.engine.GrantRole(adminAddr, MerchantRole, userA))
	require.Zero(t, f.events.Len())

	_, err = f.engine.CreateCampaign(userA, defaultParams())
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.RenounceRole(userA, MerchantRole, userB), ErrRenounceMismatch)
	require.NoError(t, f.engine.RenounceRole(userA, MerchantRole, userA))
	held, err = f.engine.HasRole(MerchantRole, userA)
	require.NoError(t, err)
	require.False(t, held)
	_, err = f.engine.CreateCampaign(userA, defaultParams())
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.engine.RevokeRole(adminAddr, MerchantRole, merchantAddr))
	require.Len(t, f.events.Filter(EventTypeRoleRevoked), 2)
	require.ErrorIs(t, f.engine.RevokeRole(operatorAddr, OperatorRole, adminAddr), ErrUnauthorized)
}

func TestSetRoleAdmin(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.SetRoleAdmin(operatorAddr, MerchantRole, OperatorRole), ErrUnauthorized)

	require.NoError(t, f.engine.SetRoleAdmin(adminAddr, MerchantRole, OperatorRole))
	changed := f.events.Filter(EventTypeRoleAdminChanged)
	require.Len(t, changed, 1)
	require.Equal(t, AdminRole.Hex(), changed[0].Attributes["previousAdminRole"])
	require.Equal(t, OperatorRole.Hex(), changed[0].Attributes["newAdminRole"])

	// Operators now manage merchants.
	require.NoError(t, f.engine.GrantRole(operatorAddr, MerchantRole, userC))
	held, err := f.engine.HasRole(MerchantRole, userC)
	require.NoError(t, err)
	require.True(t, held)
}

func TestParseRole(t *testing.T) {
	for input, want := range map[string]common.Hash{
		"merchant":           MerchantRole,
		"MERCHANT_ROLE":      MerchantRole,
		"operator":           OperatorRole,
		"default-admin":      DefaultAdminRole,
		"upgrader_role":      UpgraderRole,
		AdminRole.Hex():      AdminRole,
		"DEFAULT_ADMIN_ROLE": DefaultAdminRole,
	} {
		got, err := ParseRole(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}
	_, err := ParseRole("auditor")
	require.Error(t, err)
}

func TestPauseBlocksMoneyMovement(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	pid := f.participate(userA, id, usdt(500))

	require.ErrorIs(t, f.engine.Pause(userA), ErrUnauthorized)
	require.NoError(t, f.engine.Pause(adminAddr))
	require.ErrorIs(t, f.engine.Pause(adminAddr), ErrPaused)
	paused, err := f.engine.IsPaused(ModuleName)
	require.NoError(t, err)
	require.True(t, paused)
	paused, err = f.engine.IsPaused("token")
	require.NoError(t, err)
	require.False(t, paused)

	_, err = f.engine.CreateCampaign(merchantAddr, defaultParams())
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.engine.Participate(userB, id, usdt(200))
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.engine.BatchParticipate(operatorAddr, id, []common.Address{userB}, []*big.Int{usdt(200)})
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.engine.Refund(userA, pid)
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.engine.BatchRefund(operatorAddr, []uint64{pid})
	require.ErrorIs(t, err, ErrPaused)
	f.now = int64(f.campaign(id).EndTime)
	_, err = f.engine.SettleCampaign(merchantAddr, id)
	require.ErrorIs(t, err, ErrPaused)

	// Views keep working.
	c := f.campaign(id)
	require.Equal(t, 0, c.CurrentAmount.Cmp(usdt(500)))
	paused, err = f.engine.Paused()
	require.NoError(t, err)
	require.True(t, paused)

	// Emergency withdrawal is the escape hatch while paused.
	require.NoError(t, f.engine.EmergencyWithdraw(adminAddr, usdtAddr, usdt(100)))
	f.expectBalance(adminAddr, usdt(100))
	f.expectBalance(EscrowAddress, usdt(400))
	withdrawn := f.events.Filter(EventTypeEmergencyWithdraw)
	require.Len(t, withdrawn, 1)
	require.Equal(t, usdt(100).String(), withdrawn[0].Attributes["amount"])

	require.NoError(t, f.engine.Unpause(adminAddr))
	require.ErrorIs(t, f.engine.Unpause(adminAddr), ErrNotPaused)
	require.Len(t, f.events.Filter(EventTypePaused), 1)
	require.Len(t, f.events.Filter(EventTypeUnpaused), 1)
}

// configReadFailure fails reads of the ledger config once armed.
type configReadFailure struct {
	*state.Manager
	armed bool
	err   error
}

func (s *configReadFailure) KVGet(key []byte, out interface{}) (bool, error) {
	if s.armed && string(key) == string(configKey) {
		return false, s.err
	}
	return s.Manager.KVGet(key, out)
}

func TestPauseCheckSurfacesConfigReadErrors(t *testing.T) {
	f := newFixture(t)
	broken := &configReadFailure{Manager: f.state, err: errors.New("disk read failed")}
	f.engine.SetState(broken)
	require.NoError(t, f.engine.requireNotPaused())

	broken.armed = true
	err := f.engine.requireNotPaused()
	require.ErrorIs(t, err, broken.err)
	require.NotErrorIs(t, err, ErrPaused)

	_, err = f.engine.IsPaused(ModuleName)
	require.ErrorIs(t, err, broken.err)

	_, err = f.engine.CreateCampaign(merchantAddr, defaultParams())
	require.ErrorIs(t, err, broken.err)
	require.NotErrorIs(t, err, ErrPaused)
}

func TestEmergencyWithdrawValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	f.participate(userA, id, usdt(100))

	require.ErrorIs(t, f.engine.EmergencyWithdraw(operatorAddr, usdtAddr, usdt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.EmergencyWithdraw(adminAddr, usdtAddr, big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, f.engine.EmergencyWithdraw(adminAddr, testAddress(0x77), usdt(1)), ErrTokenUnavailable)
	require.Error(t, f.engine.EmergencyWithdraw(adminAddr, usdtAddr, usdt(101)))
	f.expectBalance(EscrowAddress, usdt(100))
}

func TestFeeBounds(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.engine.UpdateFees(userA, 100, 100, 100), ErrUnauthorized)
	require.ErrorIs(t, f.engine.UpdateFees(adminAddr, MaxPlatformFee+1, 100, 500), ErrFeeTooHigh)
	require.ErrorIs(t, f.engine.UpdateFees(adminAddr, 250, MaxMerchantFee+1, 500), ErrFeeTooHigh)
	require.ErrorIs(t, f.engine.UpdateFees(adminAddr, 250, 100, MaxEarlyWithdrawPenalty+1), ErrFeeTooHigh)
	require.NoError(t, f.engine.UpdateFees(adminAddr, MaxPlatformFee, MaxMerchantFee, MaxEarlyWithdrawPenalty))

	// 1000 + 1000 + 8001 would let a settlement pay out more than it holds.
	require.ErrorIs(t, f.engine.UpdateMaxDiscountRate(adminAddr, 8_001), ErrFeeTooHigh)
	require.ErrorIs(t, f.engine.UpdateMaxDiscountRate(adminAddr, BasisPoints+1), ErrDiscountTooHigh)
	require.NoError(t, f.engine.UpdateMaxDiscountRate(adminAddr, 8_000))

	fees, err := f.engine.Fees()
	require.NoError(t, err)
	require.Equal(t, uint32(8_000), fees.MaxDiscountRate)
	require.Len(t, f.events.Filter(EventTypeFeesUpdated), 2)

	require.NoError(t, ValidateFees(DefaultPlatformFee, DefaultMerchantFee, DefaultEarlyWithdrawPenalty, DefaultMaxDiscountRate))
}

func TestMaxDiscountAppliesToNewCampaigns(t *testing.T) {
	f := newFixture(t)

	params := defaultParams()
	params.DiscountRate = DefaultMaxDiscountRate
	_, err := f.engine.CreateCampaign(merchantAddr, params)
	require.NoError(t, err)

	params.DiscountRate = 6_000
	_, err = f.engine.CreateCampaign(merchantAddr, params)
	require.ErrorIs(t, err, ErrDiscountTooHigh)

	require.NoError(t, f.engine.UpdateMaxDiscountRate(adminAddr, 6_000))
	_, err = f.engine.CreateCampaign(merchantAddr, params)
	require.NoError(t, err)
}

func TestUpdateFeeAddresses(t *testing.T) {
	f := newFixture(t)
	newCollector := testAddress(0x5C)
	newTreasury := testAddress(0x5D)

	require.ErrorIs(t, f.engine.UpdateFeeAddresses(adminAddr, common.Address{}, newTreasury), ErrZeroAddress)
	require.ErrorIs(t, f.engine.UpdateFeeAddresses(merchantAddr, newCollector, newTreasury), ErrUnauthorized)
	require.NoError(t, f.engine.UpdateFeeAddresses(adminAddr, newCollector, newTreasury))

	id := f.createCampaign()
	pid := f.participate(userA, id, usdt(1_000))
	f.participate(userB, id, usdt(1_000))
	_, err := f.engine.Refund(userA, pid)
	require.NoError(t, err)
	f.expectBalance(newTreasury, usdt(50))

	f.now = int64(f.campaign(id).EndTime)
	_, err = f.engine.SettleCampaign(merchantAddr, id)
	require.NoError(t, err)
	// 2.5% + 1% of 1000.
	f.expectBalance(newCollector, usdt(35))
	f.expectBalance(feeCollector, big.NewInt(0))
}

func TestWhitelistAndBlacklist(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.WhitelistToken(operatorAddr, usdtAddr, false), ErrUnauthorized)
	require.ErrorIs(t, f.engine.WhitelistToken(adminAddr, common.Address{}, true), ErrZeroAddress)

	require.NoError(t, f.engine.WhitelistToken(adminAddr, usdtAddr, false))
	listed, err := f.engine.IsWhitelisted(usdtAddr)
	require.NoError(t, err)
	require.False(t, listed)
	_, err = f.engine.CreateCampaign(merchantAddr, defaultParams())
	require.ErrorIs(t, err, ErrTokenNotWhitelisted)
	require.NoError(t, f.engine.WhitelistToken(adminAddr, usdtAddr, true))

	id := f.createCampaign()
	require.NoError(t, f.engine.BlacklistAccount(adminAddr, userA, true))
	blocked, err := f.engine.IsBlacklisted(userA)
	require.NoError(t, err)
	require.True(t, blocked)
	_, err = f.engine.Participate(userA, id, usdt(100))
	require.ErrorIs(t, err, ErrBlacklisted)

	require.NoError(t, f.engine.BlacklistAccount(adminAddr, userA, false))
	f.participate(userA, id, usdt(100))

	events := f.events.Filter(EventTypeAccountBlacklisted)
	require.Len(t, events, 2)
	require.Equal(t, "false", events[1].Attributes["status"])
}

func TestUpdateCampaignStatus(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	pid := f.participate(userA, id, usdt(400))

	require.ErrorIs(t, f.engine.UpdateCampaignStatus(merchantAddr, id, CampaignCancelled), ErrUnauthorized)
	require.ErrorIs(t, f.engine.UpdateCampaignStatus(operatorAddr, id, CampaignStatus(42)), ErrInvalidStatus)
	require.ErrorIs(t, f.engine.UpdateCampaignStatus(operatorAddr, id, CampaignPending), ErrInvalidTransition)
	require.ErrorIs(t, f.engine.UpdateCampaignStatus(operatorAddr, id, CampaignSettled), ErrInvalidTransition)
	require.ErrorIs(t, f.engine.UpdateCampaignStatus(operatorAddr, 99, CampaignCancelled), ErrCampaignNotFound)

	require.NoError(t, f.engine.UpdateCampaignStatus(operatorAddr, id, CampaignCancelled))
	updated := f.events.Filter(EventTypeCampaignUpdated)
	require.Len(t, updated, 1)
	require.Equal(t, "6", updated[0].Attributes["status"])
	require.Equal(t, CampaignCancelled, f.campaign(id).Status)

	active, err := f.engine.IsCampaignActive(id)
	require.NoError(t, err)
	require.False(t, active)
	_, err = f.engine.Participate(userB, id, usdt(200))
	require.ErrorIs(t, err, ErrCampaignNotActive)
	f.now = int64(f.campaign(id).EndTime)
	_, err = f.engine.SettleCampaign(merchantAddr, id)
	require.ErrorIs(t, err, ErrCampaignNotActive)
	require.ErrorIs(t, f.engine.UpdateCampaignStatus(operatorAddr, id, CampaignActive), ErrInvalidTransition)

	// Depositors of a cancelled campaign can still leave.
	refund, err := f.engine.Refund(userA, pid)
	require.NoError(t, err)
	require.Equal(t, 0, refund.Cmp(usdt(380)))
	f.checkDepositInvariant(id)
}

func TestCampaignStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to CampaignStatus
		ok       bool
	}{
		{CampaignDraft, CampaignPending, true},
		{CampaignDraft, CampaignActive, false},
		{CampaignPending, CampaignActive, true},
		{CampaignActive, CampaignCompleted, true},
		{CampaignActive, CampaignCancelled, true},
		{CampaignCompleted, CampaignActive, false},
		{CampaignSettled, CampaignCancelled, false},
		{CampaignCancelled, CampaignDraft, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	status, err := ParseCampaignStatus("Settled")
	require.NoError(t, err)
	require.Equal(t, CampaignSettled, status)
	status, err = ParseCampaignStatus("2")
	require.NoError(t, err)
	require.Equal(t, CampaignActive, status)
	_, err = ParseCampaignStatus("archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestVerifyCampaignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()

	require.ErrorIs(t, f.engine.VerifyCampaign(userA, id), ErrUnauthorized)
	require.NoError(t, f.engine.VerifyCampaign(operatorAddr, id))
	require.True(t, f.campaign(id).IsVerified)
	require.NoError(t, f.engine.VerifyCampaign(operatorAddr, id))
	require.Len(t, f.events.Filter(EventTypeCampaignVerified), 1)
}

func TestUpgradeTo(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.UpgradeTo(operatorAddr, "1.1.0"), ErrUnauthorized)
	require.ErrorIs(t, f.engine.UpgradeTo(adminAddr, " "), ErrInvalidVersion)
	require.ErrorIs(t, f.engine.UpgradeTo(adminAddr, InitialVersion), ErrInvalidVersion)

	require.NoError(t, f.engine.UpgradeTo(adminAddr, "1.1.0"))
	version, err := f.engine.Version()
	require.NoError(t, err)
	require.Equal(t, "1.1.0", version)
	upgraded := f.events.Filter(EventTypeUpgraded)
	require.Len(t, upgraded, 1)
	require.Equal(t, "1.1.0", upgraded[0].Attributes["version"])
}
