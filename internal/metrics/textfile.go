package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"syscall"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteTextfile adds this process's samples to whatever the textfile at path
// already holds and atomically replaces it, so counters and histograms keep
// growing across CLI invocations. Writers sharing path are serialized with
// an advisory lock.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	unlock, err := lockTextfile(path)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	previous, err := readTextfile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, mf := range mergeFamilies(previous, current) {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return replaceFile(path, buf.Bytes())
}

func lockTextfile(path string) (func(), error) {
	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics lock: %w", err)
	}
	if err := syscall.Flock(int(lock.Fd()), syscall.LOCK_EX); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("lock metrics textfile: %w", err)
	}
	return func() {
		_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
		_ = lock.Close()
	}, nil
}

// readTextfile returns the medvoice families already in path. A missing file
// is empty; an unparsable one is an error so it is never silently reset.
func readTextfile(path string) (map[string]*dto.MetricFamily, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*dto.MetricFamily{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics textfile %q: %w", path, err)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse metrics textfile %q: %w", path, err)
	}
	for name := range families {
		if !strings.HasPrefix(name, namespace+"_") {
			delete(families, name)
		}
	}
	return families, nil
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}

// mergeFamilies sums current into previous series by name and label set.
// Families whose type changed are taken from current alone.
func mergeFamilies(previous map[string]*dto.MetricFamily, current []*dto.MetricFamily) []*dto.MetricFamily {
	merged := make(map[string]*dto.MetricFamily, len(previous)+len(current))
	for name, mf := range previous {
		merged[name] = mf
	}
	for _, mf := range current {
		old, ok := merged[mf.GetName()]
		if !ok || old.GetType() != mf.GetType() {
			merged[mf.GetName()] = mf
			continue
		}
		merged[mf.GetName()] = mergeFamily(old, mf)
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		out = append(out, merged[name])
	}
	return out
}

func mergeFamily(old, cur *dto.MetricFamily) *dto.MetricFamily {
	byLabels := make(map[string]*dto.Metric, len(old.GetMetric()))
	for _, m := range old.GetMetric() {
		byLabels[labelKey(m)] = m
	}

	for _, m := range cur.GetMetric() {
		key := labelKey(m)
		prev, ok := byLabels[key]
		if !ok {
			byLabels[key] = m
			continue
		}
		switch cur.GetType() {
		case dto.MetricType_COUNTER:
			sum := prev.GetCounter().GetValue() + m.GetCounter().GetValue()
			m.Counter = &dto.Counter{Value: &sum}
		case dto.MetricType_HISTOGRAM:
			m.Histogram = mergeHistogram(prev.GetHistogram(), m.GetHistogram())
		}
		byLabels[key] = m
	}

	keys := make([]string, 0, len(byLabels))
	for key := range byLabels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	help, name, kind := cur.GetHelp(), cur.GetName(), cur.GetType()
	out := &dto.MetricFamily{Name: &name, Help: &help, Type: &kind}
	for _, key := range keys {
		out.Metric = append(out.Metric, byLabels[key])
	}
	return out
}

// mergeHistogram adds bucket counts by upper bound. The +Inf bucket is
// dropped because the encoder derives it from the sample count.
func mergeHistogram(a, b *dto.Histogram) *dto.Histogram {
	counts := map[float64]uint64{}
	for _, h := range []*dto.Histogram{a, b} {
		for _, bucket := range h.GetBucket() {
			if math.IsInf(bucket.GetUpperBound(), +1) {
				continue
			}
			counts[bucket.GetUpperBound()] += bucket.GetCumulativeCount()
		}
	}

	bounds := make([]float64, 0, len(counts))
	for bound := range counts {
		bounds = append(bounds, bound)
	}
	slices.Sort(bounds)

	sampleCount := a.GetSampleCount() + b.GetSampleCount()
	sampleSum := a.GetSampleSum() + b.GetSampleSum()
	out := &dto.Histogram{SampleCount: &sampleCount, SampleSum: &sampleSum}
	for _, bound := range bounds {
		upper, count := bound, counts[bound]
		out.Bucket = append(out.Bucket, &dto.Bucket{UpperBound: &upper, CumulativeCount: &count})
	}
	return out
}

func labelKey(m *dto.Metric) string {
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, label := range m.GetLabel() {
		pairs = append(pairs, label.GetName()+"="+label.GetValue())
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\x00")
}
