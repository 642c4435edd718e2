package models

// SignalSample is a snapshot of radio conditions at one poll instant.
// Either of the NR/LTE groups may be entirely null, and both are null when
// the gateway reports no signal; the row is still written to preserve
// temporal continuity in range queries.
type SignalSample struct {
	ID             int64    `json:"id"`
	Timestamp      string   `json:"timestamp"`
	TimestampUnix  float64  `json:"timestamp_unix"`
	NRSinr         *float64 `json:"nr_sinr"`
	NRRsrp         *float64 `json:"nr_rsrp"`
	NRRsrq         *float64 `json:"nr_rsrq"`
	NRRssi         *float64 `json:"nr_rssi"`
	NRBands        *string  `json:"nr_bands"`
	NRGnbID        *string  `json:"nr_gnb_id"`
	NRCid          *string  `json:"nr_cid"`
	LTESinr        *float64 `json:"lte_sinr"`
	LTERsrp        *float64 `json:"lte_rsrp"`
	LTERsrq        *float64 `json:"lte_rsrq"`
	LTERssi        *float64 `json:"lte_rssi"`
	LTEBands       *string  `json:"lte_bands"`
	LTEEnbID       *string  `json:"lte_enb_id"`
	LTECid         *string  `json:"lte_cid"`
	RegistrationStatus string `json:"registration_status"`
	DeviceUptime       *int64 `json:"device_uptime"`
}

// HasSignal reports whether any radio group carries a non-null metric.
func (s *SignalSample) HasSignal() bool {
	return s.NRSinr != nil || s.NRRsrp != nil || s.NRRsrq != nil || s.NRRssi != nil ||
		s.LTESinr != nil || s.LTERsrp != nil || s.LTERsrq != nil || s.LTERssi != nil
}

// ConnectionMode infers the coarse connection mode from which radio groups
// are reporting signal: 5G-only -> SA, both -> NSA, LTE-only -> LTE,
// neither -> No Signal.
func (s *SignalSample) ConnectionMode() string {
	hasNR := s.NRSinr != nil || s.NRRsrp != nil || s.NRRsrq != nil || s.NRRssi != nil
	hasLTE := s.LTESinr != nil || s.LTERsrp != nil || s.LTERsrq != nil || s.LTERssi != nil

	switch {
	case hasNR && hasLTE:
		return "NSA"
	case hasNR:
		return "SA"
	case hasLTE:
		return "LTE"
	default:
		return "No Signal"
	}
}

// SignalHistoryQuery is the decoded parameter set for QuerySignalHistory.
type SignalHistoryQuery struct {
	DurationMinutes int
	Resolution      string
}

// TowerChange is a derived record emitted by TowerHistory whenever a
// tower identifier differs from the previously observed value.
type TowerChange struct {
	Timestamp     string  `json:"timestamp"`
	TimestampUnix float64 `json:"timestamp_unix"`
	RadioType     string  `json:"radio_type"` // "5g" or "4g"
	PreviousID    string  `json:"previous_id"`
	NewID         string  `json:"new_id"`
}
