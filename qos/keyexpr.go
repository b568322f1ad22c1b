package qos

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKeyExpr is returned by ParseKeyExpr for malformed QoS strings.
var ErrInvalidKeyExpr = errors.New("qos: invalid key expression")

const (
	delimiter          = ":"
	componentDelimiter = ","
)

// KeyExpr encodes p into the compact form carried by liveliness tokens:
//
//	<rel>:<dur>:<hist>,<depth>:<dlSec>,<dlNsec>:<lsSec>,<lsNsec>:<liv>,<livSec>,<livNsec>
//
// Each value is left empty when it equals the rmw_zenoh default (Reliable,
// Volatile, KeepLast, depth 42, Automatic, unset durations).
func (p Profile) KeyExpr() string {
	def := rmwDefault()
	var b strings.Builder

	writeEnum(&b, uint8(p.Reliability), uint8(def.Reliability))
	b.WriteString(delimiter)
	writeEnum(&b, uint8(p.Durability), uint8(def.Durability))
	b.WriteString(delimiter)
	writeEnum(&b, uint8(p.History), uint8(def.History))
	b.WriteString(componentDelimiter)
	if p.Depth != def.Depth {
		b.WriteString(strconv.Itoa(p.Depth))
	}
	b.WriteString(delimiter)
	writeDuration(&b, p.Deadline)
	b.WriteString(delimiter)
	writeDuration(&b, p.Lifespan)
	b.WriteString(delimiter)
	writeEnum(&b, uint8(p.Liveliness), uint8(def.Liveliness))
	b.WriteString(componentDelimiter)
	writeDuration(&b, p.LivelinessLeaseDuration)
	return b.String()
}

func writeEnum(b *strings.Builder, v, def uint8) {
	if v != def {
		b.WriteString(strconv.Itoa(int(v)))
	}
}

func writeDuration(b *strings.Builder, d Duration) {
	if d.IsZero() || d.IsInfinite() {
		b.WriteString(componentDelimiter)
		return
	}
	b.WriteString(strconv.FormatUint(d.Sec, 10))
	b.WriteString(componentDelimiter)
	b.WriteString(strconv.FormatUint(d.Nsec, 10))
}

// ParseKeyExpr decodes a string produced by KeyExpr. Empty values read back
// as the rmw_zenoh defaults.
func ParseKeyExpr(s string) (Profile, error) {
	parts := strings.Split(s, delimiter)
	if len(parts) != 6 {
		return Profile{}, fmt.Errorf("%w: want 6 fields, got %d in %q", ErrInvalidKeyExpr, len(parts), s)
	}
	p := rmwDefault()

	rel, err := parseEnum(parts[0], uint8(p.Reliability), uint8(ReliabilityBestAvailable))
	if err != nil {
		return Profile{}, fmt.Errorf("reliability: %w", err)
	}
	p.Reliability = Reliability(rel)

	dur, err := parseEnum(parts[1], uint8(p.Durability), uint8(DurabilityBestAvailable))
	if err != nil {
		return Profile{}, fmt.Errorf("durability: %w", err)
	}
	p.Durability = Durability(dur)

	hist := strings.Split(parts[2], componentDelimiter)
	if len(hist) != 2 {
		return Profile{}, fmt.Errorf("%w: history %q", ErrInvalidKeyExpr, parts[2])
	}
	h, err := parseEnum(hist[0], uint8(p.History), uint8(HistoryUnknown))
	if err != nil {
		return Profile{}, fmt.Errorf("history: %w", err)
	}
	p.History = History(h)
	if hist[1] != "" {
		depth, err := strconv.Atoi(hist[1])
		if err != nil || depth < 0 {
			return Profile{}, fmt.Errorf("%w: depth %q", ErrInvalidKeyExpr, hist[1])
		}
		p.Depth = depth
	}

	if p.Deadline, err = parseDuration(parts[3]); err != nil {
		return Profile{}, fmt.Errorf("deadline: %w", err)
	}
	if p.Lifespan, err = parseDuration(parts[4]); err != nil {
		return Profile{}, fmt.Errorf("lifespan: %w", err)
	}

	liv := strings.SplitN(parts[5], componentDelimiter, 2)
	if len(liv) != 2 {
		return Profile{}, fmt.Errorf("%w: liveliness %q", ErrInvalidKeyExpr, parts[5])
	}
	l, err := parseEnum(liv[0], uint8(p.Liveliness), uint8(LivelinessBestAvailable))
	if err != nil {
		return Profile{}, fmt.Errorf("liveliness: %w", err)
	}
	p.Liveliness = Liveliness(l)
	if p.LivelinessLeaseDuration, err = parseDuration(liv[1]); err != nil {
		return Profile{}, fmt.Errorf("liveliness lease: %w", err)
	}
	return p, nil
}

func parseEnum(s string, def, maxValue uint8) (uint8, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil || uint8(v) > maxValue {
		return 0, fmt.Errorf("%w: enum value %q", ErrInvalidKeyExpr, s)
	}
	return uint8(v), nil
}

func parseDuration(s string) (Duration, error) {
	sec, nsec, ok := strings.Cut(s, componentDelimiter)
	if !ok {
		return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidKeyExpr, s)
	}
	var d Duration
	var err error
	if sec != "" {
		if d.Sec, err = strconv.ParseUint(sec, 10, 64); err != nil {
			return Duration{}, fmt.Errorf("%w: seconds %q", ErrInvalidKeyExpr, sec)
		}
	}
	if nsec != "" {
		if d.Nsec, err = strconv.ParseUint(nsec, 10, 64); err != nil {
			return Duration{}, fmt.Errorf("%w: nanoseconds %q", ErrInvalidKeyExpr, nsec)
		}
	}
	return d, nil
}
