// Package prompt reads shell input for the focal client.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/ResQWave/internal/models"
)

// Prompter reads answers line by line from in and writes labels to out.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// New returns a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the trimmed answer. ok is false once input is exhausted.
func (p *Prompter) Line(label string) (string, bool) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// Command reads the next shell command and its arguments.
func (p *Prompter) Command() (name string, args []string, ok bool) {
	line, ok := p.Line("> ")
	if !ok {
		return "", nil, false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, true
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Credentials asks for the email or phone number and the password. The
// password line is not trimmed.
func (p *Prompter) Credentials() (identifier, password string, ok bool) {
	identifier, ok = p.Line("Email or phone number: ")
	if !ok {
		return "", "", false
	}
	fmt.Fprint(p.out, "Password: ")
	if !p.scanner.Scan() {
		return "", "", false
	}
	return identifier, p.scanner.Text(), true
}

// Code asks for the 6-digit verification code.
func (p *Prompter) Code() (string, bool) {
	return p.Line("Verification code: ")
}

// NeighborhoodEdit asks for new values for each editable field of cur. An
// empty answer keeps the current value. Hazards are comma separated and
// notable information is separated by ";".
func (p *Prompter) NeighborhoodEdit(cur models.NeighborhoodDetails) (models.NeighborhoodUpdate, error) {
	u := models.NeighborhoodUpdate{
		NeighborhoodID:       cur.ID,
		ApproxHouseholds:     cur.ApproxHouseholds,
		ApproxResidents:      cur.ApproxResidents,
		FloodwaterSubsidence: cur.FloodwaterSubsidence,
		FloodRelatedHazards:  cur.FloodRelatedHazards,
		NotableInfo:          cur.NotableInfo,
	}

	var err error
	if u.ApproxHouseholds, err = p.intField("Approx. households", cur.ApproxHouseholds); err != nil {
		return u, err
	}
	if u.ApproxResidents, err = p.intField("Approx. residents", cur.ApproxResidents); err != nil {
		return u, err
	}
	if s, ok := p.Line(fmt.Sprintf("Floodwater subsidence [%s]: ", cur.FloodwaterSubsidence)); ok && s != "" {
		u.FloodwaterSubsidence = s
	}
	if s, ok := p.Line(fmt.Sprintf("Flood-related hazards [%s]: ", strings.Join(cur.FloodRelatedHazards, ", "))); ok && s != "" {
		u.FloodRelatedHazards = splitList(s, ",")
	}
	if s, ok := p.Line(fmt.Sprintf("Notable info [%s]: ", strings.Join(cur.NotableInfo, "; "))); ok && s != "" {
		u.NotableInfo = splitList(s, ";")
	}
	return u, nil
}

func (p *Prompter) intField(label string, cur int) (int, error) {
	s, ok := p.Line(fmt.Sprintf("%s [%d]: ", label, cur))
	if !ok || s == "" {
		return cur, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return cur, models.NewValidationError(label + " must be a whole number")
	}
	return n, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
