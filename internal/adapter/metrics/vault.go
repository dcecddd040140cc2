package metrics

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/simaogato/cellar-backend/internal/domain"
)

// VaultMetrics exports vault activity to Prometheus
type VaultMetrics struct {
	deposits     *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	feeShares    *prometheus.CounterVec
	totalAssets  *prometheus.GaugeVec
	activeAssets *prometheus.GaugeVec
	totalShares  prometheus.Gauge
	sharePrice   prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide collectors, registering them on first use
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = NewVaultMetrics(prometheus.DefaultRegisterer)
	})
	return vaultRegistry
}

// NewVaultMetrics builds collectors registered with reg
func NewVaultMetrics(reg prometheus.Registerer) *VaultMetrics {
	m := &VaultMetrics{
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellar_deposits_total",
			Help: "Assets credited by committed deposits.",
		}, []string{"asset"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellar_withdrawals_total",
			Help: "Assets paid out by committed withdrawals.",
		}, []string{"asset"}),
		feeShares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellar_fee_shares_total",
			Help: "Fee shares minted or collected by kind.",
		}, []string{"kind"}),
		totalAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cellar_total_assets",
			Help: "Inactive plus active assets at the last snapshot.",
		}, []string{"asset"}),
		activeAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cellar_active_assets",
			Help: "Assets deployed to the yield source at the last snapshot.",
		}, []string{"asset"}),
		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cellar_total_shares",
			Help: "Outstanding shares including fee shares.",
		}),
		sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cellar_share_price",
			Help: "Total assets per share at the last snapshot.",
		}),
	}
	reg.MustRegister(m.deposits, m.withdrawals, m.feeShares, m.totalAssets, m.activeAssets, m.totalShares, m.sharePrice)
	return m
}

func (m *VaultMetrics) ObserveDeposit(asset domain.Asset, assets *uint256.Int) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(label(asset)).Add(toFloat(assets))
}

func (m *VaultMetrics) ObserveWithdraw(asset domain.Asset, assets *uint256.Int) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(label(asset)).Add(toFloat(assets))
}

func (m *VaultMetrics) ObserveFee(kind domain.EventKind, shares *uint256.Int) {
	if m == nil {
		return
	}
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	m.feeShares.WithLabelValues(k).Add(toFloat(shares))
}

func (m *VaultMetrics) ObserveSnapshot(s *domain.VaultSnapshot) {
	if m == nil || s == nil {
		return
	}
	m.totalAssets.WithLabelValues(label(s.Asset)).Set(toFloat(s.TotalAssets))
	m.activeAssets.WithLabelValues(label(s.Asset)).Set(toFloat(s.ActiveAssets))
	m.totalShares.Set(toFloat(s.TotalShares))
	if domain.IsZero(s.TotalShares) {
		m.sharePrice.Set(1)
		return
	}
	price, _ := domain.ToDecimal(s.TotalAssets).Div(domain.ToDecimal(s.TotalShares)).Float64()
	m.sharePrice.Set(price)
}

func label(asset domain.Asset) string {
	if asset == "" {
		return "unknown"
	}
	return string(asset)
}

// toFloat loses precision above 2^53; gauges only need magnitude
func toFloat(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
