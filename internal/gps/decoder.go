// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// maxPartial bounds a carried-over line; NMEA sentences are at most 82 chars.
const maxPartial = 256

// Decoder reads NMEA sentences line by line and yields fixes.
type Decoder struct {
	r       *bufio.Reader
	partial string
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next RMC/GGA fix in the stream. Lines that are not NMEA
// sentences or fail to parse are skipped. The returned error is the one from
// the underlying reader, io.EOF included. An unparsable line cut short by a
// read error is kept and completed by the following call, so Next can be
// retried after read timeouts.
func (d *Decoder) Next() (Fix, error) {
	for {
		line, err := d.r.ReadString('\n')
		line = d.partial + line
		d.partial = ""

		if fix, ok := parseLine(line); ok {
			return fix, nil
		}
		if err != nil {
			if !strings.HasSuffix(line, "\n") && len(line) <= maxPartial {
				d.partial = line
			}
			return Fix{}, err
		}
	}
}

func parseLine(line string) (Fix, bool) {
	line = strings.TrimSpace(line)
	// NMEA sentences start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		return Fix{}, false
	}
	return FromSentence(sentence)
}
