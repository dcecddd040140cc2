package metrics

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/simaogato/cellar-backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestVaultMetrics_Observe(t *testing.T) {
	m := NewVaultMetrics(prometheus.NewRegistry())

	m.ObserveDeposit("USDC", uint256.NewInt(100))
	m.ObserveDeposit("USDC", uint256.NewInt(50))
	m.ObserveWithdraw("USDC", uint256.NewInt(30))
	m.ObserveFee(domain.EventPlatformFee, uint256.NewInt(27))
	m.ObserveSnapshot(&domain.VaultSnapshot{
		Asset:        "USDC",
		TotalAssets:  uint256.NewInt(250),
		ActiveAssets: uint256.NewInt(200),
		TotalShares:  uint256.NewInt(200),
	})

	assert.Equal(t, float64(150), testutil.ToFloat64(m.deposits.WithLabelValues("USDC")))
	assert.Equal(t, float64(30), testutil.ToFloat64(m.withdrawals.WithLabelValues("USDC")))
	assert.Equal(t, float64(27), testutil.ToFloat64(m.feeShares.WithLabelValues("PlatformFee")))
	assert.Equal(t, float64(250), testutil.ToFloat64(m.totalAssets.WithLabelValues("USDC")))
	assert.Equal(t, 1.25, testutil.ToFloat64(m.sharePrice))
}

func TestVaultMetrics_NilSafe(t *testing.T) {
	var m *VaultMetrics
	assert.NotPanics(t, func() {
		m.ObserveDeposit("USDC", uint256.NewInt(1))
		m.ObserveSnapshot(&domain.VaultSnapshot{})
	})
}
