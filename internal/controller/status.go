// Package controller talks to the running FAUCET process: it scrapes the
// controller's prometheus endpoint for reload status and delivers the reload
// trigger.
package controller

import (
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric families the agent inspects. Everything else in the exposition
// payload is ignored.
const (
	metricHashInfo  = "faucet_config_hash_info"
	metricHashFunc  = "faucet_config_hash_func"
	metricLoadError = "faucet_config_load_error"
	metricApplied   = "faucet_config_applied"
)

// Status is a point-in-time snapshot of the controller's self-reported
// reload state. It is fetched fresh on every poll iteration and never cached.
//
// Fields the controller does not export fall back to permissive defaults
// (Applied 1.0, empty hash info) so that older controllers do not permanently
// block verification.
type Status struct {
	// ConfigFiles and Hashes come from the comma-joined label values of
	// faucet_config_hash_info and have matching cardinality when the
	// controller is well-behaved.
	ConfigFiles []string
	Hashes      []string

	// HashFuncs holds the label values of faucet_config_hash_func. The
	// snapshot is only verifiable when exactly one algorithm is reported.
	HashFuncs []string

	// LoadError is true when the controller failed to parse or apply the
	// last configuration it loaded.
	LoadError bool

	// Applied is the fraction of datapaths that have acknowledged the
	// current configuration, in [0.0, 1.0].
	Applied float64
}

// ParseStatus extracts the reload-state metrics from a prometheus text
// exposition payload.
func ParseStatus(text string) (*Status, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse controller metrics: %w", err)
	}

	status := &Status{Applied: 1.0}
	if family, ok := families[metricHashInfo]; ok {
		labels := firstSampleLabels(family)
		if files := labels["config_files"]; files != "" {
			status.ConfigFiles = strings.Split(files, ",")
		}
		if hashes := labels["hashes"]; hashes != "" {
			status.Hashes = strings.Split(hashes, ",")
		}
	}
	if family, ok := families[metricHashFunc]; ok {
		for _, value := range firstSampleLabels(family) {
			status.HashFuncs = append(status.HashFuncs, value)
		}
	}
	if family, ok := families[metricLoadError]; ok {
		status.LoadError = firstSampleValue(family) != 0
	}
	if family, ok := families[metricApplied]; ok {
		status.Applied = firstSampleValue(family)
	}
	return status, nil
}

// firstSampleLabels returns the label set of the family's first sample, like
// the controller's own single-sample status metrics expect.
func firstSampleLabels(family *dto.MetricFamily) map[string]string {
	metrics := family.GetMetric()
	if len(metrics) == 0 {
		return nil
	}
	labels := make(map[string]string, len(metrics[0].GetLabel()))
	for _, pair := range metrics[0].GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

func firstSampleValue(family *dto.MetricFamily) float64 {
	metrics := family.GetMetric()
	if len(metrics) == 0 {
		return 0
	}
	m := metrics[0]
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}
