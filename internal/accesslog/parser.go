// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package accesslog follows an nginx access log written in the
// timed_combined format and turns requests into metric samples:
//
//	log_format timed_combined '$remote_addr - $remote_user [$time_iso8601] '
//	                          '"$request" $status $body_bytes_sent '
//	                          '"$http_referer" "$http_user_agent" '
//	                          '$request_time $upstream_response_time';
package accesslog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrParse is returned for lines that do not match the format.
var ErrParse = errors.New("access log line does not match timed_combined")

var timedCombined = regexp.MustCompile(`^` + strings.Join([]string{
	`(?P<host>\S+)`,
	`\S+`,
	`(?P<user>\S+)`,
	`\[(?P<time>.+)\]`,
	`"(?P<request>.*)"`,
	`(?P<status>[0-9]+)`,
	`(?P<bytes_sent>\S+)`,
	`"(?P<referrer>.*)"`,
	`"(?P<agent>.*)"`,
	`(?P<request_time>\S+)`,
	`(?P<upstream_time>\S+)`,
}, `\s+`) + `\s*$`)

// Entry is one parsed request. Time is kept as logged.
type Entry struct {
	Host         string
	User         string
	Time         string
	Request      string
	Status       int
	BytesSent    float64
	Referrer     string
	Agent        string
	RequestTime  float64
	UpstreamTime float64
}

// Timestamp parses Time as ISO 8601.
func (e Entry) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Time)
}

// Parser parses timed_combined lines.
type Parser struct {
	re  *regexp.Regexp
	idx map[string]int
}

// NewParser returns a ready parser.
func NewParser() *Parser {
	p := &Parser{re: timedCombined, idx: make(map[string]int)}
	for i, name := range timedCombined.SubexpNames() {
		if name != "" {
			p.idx[name] = i
		}
	}
	return p
}

// Parse parses one line. ok is false for requests outside 2xx and 3xx,
// which are not counted.
func (p *Parser) Parse(line string) (Entry, bool, error) {
	m := p.re.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, false, ErrParse
	}
	get := func(name string) string { return m[p.idx[name]] }

	status, err := strconv.Atoi(get("status"))
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: status: %v", ErrParse, err)
	}
	if status < 200 || status >= 400 {
		return Entry{}, false, nil
	}

	e := Entry{
		Host:     get("host"),
		User:     get("user"),
		Time:     get("time"),
		Request:  get("request"),
		Status:   status,
		Referrer: get("referrer"),
		Agent:    get("agent"),
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"bytes_sent", &e.BytesSent},
		{"request_time", &e.RequestTime},
		{"upstream_time", &e.UpstreamTime},
	} {
		v, err := number(get(f.name))
		if err != nil {
			return Entry{}, false, fmt.Errorf("%w: %s: %v", ErrParse, f.name, err)
		}
		*f.dst = v
	}
	return e, true, nil
}

// number reads a numeric field; nginx logs "-" when there is no value.
func number(s string) (float64, error) {
	if s == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Metrics converts an entry into Graphite samples under "requests.".
func Metrics(e Entry) map[string]float64 {
	return map[string]float64{
		"requests.count":                                  1,
		"requests.bytes_sent":                             e.BytesSent,
		"requests.request_time":                           e.RequestTime,
		"requests.upstream_time":                          e.UpstreamTime,
		fmt.Sprintf("requests.status.%dxx", e.Status/100): 1,
	}
}
