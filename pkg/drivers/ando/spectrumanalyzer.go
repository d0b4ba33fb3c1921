// Package ando drives ANDO optical spectrum analyzers. The analyzer
// sits on a GPIB bus reached through a Prologix GPIB-Ethernet adapter
// and returns comma separated values, traces chunked in groups of
// twenty points.
package ando

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// dataChunk is how many trace points one LDATA/WDATA request may carry
// without overflowing the analyzer's output buffer.
const dataChunk = 20

// measurementModes decodes the CWPLS? response.
var measurementModes = map[int]string{
	0: "pulsed",
	1: "cw",
}

// triggerModes decodes the PLMOD? response for pulsed measurements.
var triggerModes = map[int]string{
	1: "peak hold",
	2: "gate sampling",
	3: "external trigger",
}

// SpectrumAnalyzer is an ANDO spectrum analyzer behind a Prologix
// adapter.
type SpectrumAnalyzer struct {
	host   string
	gpib   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewSpectrumAnalyzer returns a driver for the analyzer at the given
// GPIB address behind the adapter at host.
func NewSpectrumAnalyzer(host string, gpib int) (*SpectrumAnalyzer, error) {
	if host == "" {
		return nil, fmt.Errorf("ando: adapter host is required")
	}
	if gpib < 0 || gpib > 30 {
		return nil, fmt.Errorf("ando: GPIB address %d out of range 0..30", gpib)
	}
	return &SpectrumAnalyzer{
		host:   host,
		gpib:   gpib,
		logger: log.WithField("device", "ando.spectrumanalyzer"),
	}, nil
}

// Initialize connects through the adapter and selects the instrument.
// Calling it on a connected driver is a no-op.
func (d *SpectrumAnalyzer) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewPrologix(transport.PrologixConfig{
		Host:     d.host,
		GPIBAddr: d.gpib,
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to spectrum analyzer: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify spectrum analyzer: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the adapter connection. Closing a closed driver is a
// no-op.
func (d *SpectrumAnalyzer) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *SpectrumAnalyzer) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *SpectrumAnalyzer) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *SpectrumAnalyzer) IDN() (string, error) {
	return d.Query("*IDN?")
}

// Sweep starts a single sweep with the current settings. The trace is
// buffered on the instrument; read it with XData and YData.
func (d *SpectrumAnalyzer) Sweep() error {
	return d.Write("SGL")
}

// Finish polls the instrument until the running sweep completes.
func (d *SpectrumAnalyzer) Finish() error {
	for {
		resp, err := d.Query("SWEEP?")
		if err != nil {
			return err
		}
		status, err := strconv.Atoi(strings.TrimSpace(firstField(resp)))
		if err != nil {
			return fmt.Errorf("malformed sweep status %q: %v", resp, err)
		}
		if status == 0 {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Sampling returns the number of trace points per sweep.
func (d *SpectrumAnalyzer) Sampling() (int, error) {
	resp, err := d.Query("SMPL?")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(firstField(resp)))
	if err != nil {
		return 0, fmt.Errorf("malformed sampling %q: %v", resp, err)
	}
	return n, nil
}

// SetSampling sets the number of trace points per sweep, 11 to 1001.
func (d *SpectrumAnalyzer) SetSampling(n int) error {
	if n < 11 || n > 1001 {
		return fmt.Errorf("ando: sampling %d out of range 11..1001", n)
	}
	return d.Write(fmt.Sprintf("SMPL%d", n))
}

// XData reads the wavelength axis of the buffered trace in nm.
func (d *SpectrumAnalyzer) XData() ([]float64, error) {
	return d.getData("WDATA")
}

// YData reads the level axis of the buffered trace in dBm.
func (d *SpectrumAnalyzer) YData() ([]float64, error) {
	return d.getData("LDATA")
}

// getData fetches a full trace axis in chunks the instrument's output
// buffer can hold. Every chunk is prefixed with its point count.
func (d *SpectrumAnalyzer) getData(cmd string) ([]float64, error) {
	total, err := d.Sampling()
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, total)
	for start := 1; start <= total; start += dataChunk {
		end := start + dataChunk - 1
		if end > total {
			end = total
		}
		resp, err := d.Query(fmt.Sprintf("%s R%d-R%d", cmd, start, end))
		if err != nil {
			return nil, err
		}
		chunk, err := parseChunk(resp)
		if err != nil {
			return nil, fmt.Errorf("reading %s points %d-%d: %v", cmd, start, end, err)
		}
		values = append(values, chunk...)
	}
	// The instrument rounds chunks up to full buffers.
	if len(values) > total {
		values = values[:total]
	}
	return values, nil
}

// Analysis returns the result of the instrument's trace analysis:
// center wavelength in nm, bandwidth in nm and the number of modes.
// The instrument only provides it in the analysis display modes.
func (d *SpectrumAnalyzer) Analysis() (float64, float64, int, error) {
	resp, err := d.Query("ANA?")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("no analysis data available, got %q", resp)
	}
	center, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed center wavelength %q: %v", fields[0], err)
	}
	bandwidth, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed bandwidth %q: %v", fields[1], err)
	}
	modes, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed mode count %q: %v", fields[2], err)
	}
	return center, bandwidth, modes, nil
}

// Center returns the center wavelength in nm.
func (d *SpectrumAnalyzer) Center() (float64, error) {
	return d.queryFloat("CTRWL?")
}

// SetCenter sets the center wavelength in nm, 350.00 to 1750.00.
func (d *SpectrumAnalyzer) SetCenter(wavelength float64) error {
	if wavelength < 350 || wavelength > 1750 {
		return fmt.Errorf("ando: center wavelength %g out of range 350..1750 nm", wavelength)
	}
	return d.Write(fmt.Sprintf("CTRWL%f", wavelength))
}

// Span returns the wavelength span in nm.
func (d *SpectrumAnalyzer) Span() (float64, error) {
	return d.queryFloat("SPAN?")
}

// SetSpan sets the wavelength span in nm, zero or 1.00 to 1500.00.
func (d *SpectrumAnalyzer) SetSpan(span float64) error {
	if span != 0 && (span < 1 || span > 1500) {
		return fmt.Errorf("ando: span %g must be 0 or within 1..1500 nm", span)
	}
	return d.Write(fmt.Sprintf("SPAN%f", span))
}

// MeasurementMode reports whether the analyzer measures a pulsed or a
// cw laser.
func (d *SpectrumAnalyzer) MeasurementMode() (int, string, error) {
	resp, err := d.Query("CWPLS?")
	if err != nil {
		return 0, "", err
	}
	code, err := strconv.Atoi(strings.TrimSpace(firstField(resp)))
	if err != nil {
		return 0, "", fmt.Errorf("malformed measurement mode %q: %v", resp, err)
	}
	name, ok := measurementModes[code]
	if !ok {
		return 0, "", fmt.Errorf("unknown measurement mode %d", code)
	}
	return code, name, nil
}

// SetMeasurementMode selects pulsed (0) or cw (1) measurement.
func (d *SpectrumAnalyzer) SetMeasurementMode(mode int) error {
	switch mode {
	case 0:
		return d.Write("PLMES")
	case 1:
		return d.Write("CLMES")
	default:
		return fmt.Errorf("ando: measurement mode must be 0 or 1, got %d", mode)
	}
}

// TriggerMode reports how the analyzer triggers in pulsed measurement.
// Codes the driver does not know come back labeled "unknown".
func (d *SpectrumAnalyzer) TriggerMode() (int, string, error) {
	resp, err := d.Query("PLMOD?")
	if err != nil {
		return 0, "", err
	}
	code, err := strconv.Atoi(strings.TrimSpace(firstField(resp)))
	if err != nil {
		return 0, "", fmt.Errorf("malformed trigger mode %q: %v", resp, err)
	}
	name, ok := triggerModes[code]
	if !ok {
		name = "unknown"
	}
	return code, name, nil
}

// PeakHoldMode sets the trigger to peak hold with the rough pulse
// repetition time in ms.
func (d *SpectrumAnalyzer) PeakHoldMode(repetition int) error {
	if repetition <= 0 {
		return fmt.Errorf("ando: repetition time must be positive, got %d", repetition)
	}
	return d.Write(fmt.Sprintf("PKHLD%d", repetition))
}

func (d *SpectrumAnalyzer) queryFloat(cmd string) (float64, error) {
	resp, err := d.Query(cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(firstField(resp)), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed response %q to %s: %v", resp, cmd, err)
	}
	return value, nil
}

func firstField(resp string) string {
	first, _, _ := strings.Cut(resp, ",")
	return first
}

func parseChunk(resp string) ([]float64, error) {
	fields := strings.Split(resp, ",")
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("malformed point count %q: %v", fields[0], err)
	}
	if count != len(fields)-1 {
		return nil, fmt.Errorf("point count %d does not match %d values", count, len(fields)-1)
	}
	values := make([]float64, 0, count)
	for _, field := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed trace value %q: %v", field, err)
		}
		values = append(values, v)
	}
	return values, nil
}
