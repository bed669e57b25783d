package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/atinyakov/ResQWave/internal/client/auth"
	"github.com/atinyakov/ResQWave/internal/client/countdown"
	"github.com/atinyakov/ResQWave/internal/client/neighborhood"
	"github.com/atinyakov/ResQWave/internal/client/prompt"
	"github.com/atinyakov/ResQWave/internal/client/session"
	"github.com/atinyakov/ResQWave/internal/models"
)

const helpText = `Available commands:
  login            sign in with email or phone number and password
  verify [code]    enter the 6-digit verification code
  resend           send a new code (after the cooldown)
  status           show session and login progress
  me               fetch the signed-in user from the backend
  own              show your neighborhood on the map
  others           list other neighborhoods grouped by area
  details          show your neighborhood details
  edit             edit your neighborhood details
  logout           end the session
  help, exit`

// shell is the interactive focal client.
type shell struct {
	p        *prompt.Prompter
	out      io.Writer
	auth     *auth.Client
	hood     *neighborhood.Client
	cd       *countdown.Countdown
	attempt  *auth.Attempt
	cooldown int
	now      func() time.Time

	// hadSession records whether a session or pending code existed when the
	// current command started.
	hadSession bool
}

func newShell(
	p *prompt.Prompter,
	out io.Writer,
	ac *auth.Client,
	hood *neighborhood.Client,
	cd *countdown.Countdown,
	guard *session.Guard,
	cooldown int,
) *shell {
	s := &shell{
		p:        p,
		out:      out,
		auth:     ac,
		hood:     hood,
		cd:       cd,
		attempt:  ac.NewAttempt(),
		cooldown: cooldown,
		now:      time.Now,
	}
	guard.RegisterLogoutCallback(s.sessionEnded)
	return s
}

// sessionEnded runs when the backend rejects the stored token. Nothing is
// announced when there was no session to lose.
func (s *shell) sessionEnded() {
	s.attempt.Reset()
	s.cd.Stop()
	if s.hadSession {
		fmt.Fprintln(s.out, models.DefaultSessionExpiredMessage)
	}
}

// run reads commands until exit, end of input or ctx is done.
func (s *shell) run(ctx context.Context) {
	defer s.cd.Stop()

	for ctx.Err() == nil {
		name, args, ok := s.p.Command()
		if !ok {
			return
		}
		if s.attempt.Expire(s.now()) {
			fmt.Fprintln(s.out, "Your code has expired. Login again.")
		}
		s.hadSession = s.auth.IsAuthenticated() || s.attempt.Pending() != nil

		switch name {
		case "":
		case "help":
			fmt.Fprintln(s.out, helpText)
		case "login":
			s.login(ctx)
		case "verify":
			s.verify(ctx, args)
		case "resend":
			s.resend(ctx)
		case "status":
			s.status()
		case "me":
			s.me(ctx)
		case "own":
			s.own(ctx)
		case "others":
			s.others(ctx)
		case "details":
			s.details(ctx)
		case "edit":
			s.edit(ctx)
		case "logout":
			s.logout(ctx)
		case "exit":
			fmt.Fprintln(s.out, "Bye")
			return
		default:
			fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (s *shell) login(ctx context.Context) {
	id, pw, ok := s.p.Credentials()
	if !ok {
		return
	}
	if err := s.attempt.Submit(ctx, id, pw); err != nil {
		s.fail(err)
		return
	}
	s.cd.Start(s.cooldown)
	fmt.Fprintf(s.out, "A verification code was sent to %s. Type 'verify' to enter it.\n", s.attempt.Pending().Identifier)
}

func (s *shell) verify(ctx context.Context, args []string) {
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		var ok bool
		if code, ok = s.p.Code(); !ok {
			return
		}
	}
	sess, err := s.attempt.Verify(ctx, code)
	if err != nil {
		s.fail(err)
		return
	}
	s.cd.Stop()
	fmt.Fprintf(s.out, "Welcome, %s (%s)\n", sess.User.Name, sess.User.Role)
}

func (s *shell) resend(ctx context.Context) {
	if st := s.cd.State(); !st.Enabled {
		fmt.Fprintf(s.out, "%s: please wait before requesting a new code.\n", st.Label())
		return
	}
	if err := s.attempt.Resend(ctx); err != nil {
		s.fail(err)
		return
	}
	if s.cooldown == countdown.DefaultSeconds {
		s.cd.Reset()
	} else {
		s.cd.Start(s.cooldown)
	}
	fmt.Fprintln(s.out, "A new code was sent.")
}

func (s *shell) status() {
	if u := s.auth.StoredUser(); u != nil && s.auth.IsAuthenticated() {
		fmt.Fprintf(s.out, "Signed in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
	} else {
		fmt.Fprintln(s.out, "Not signed in")
	}
	st := s.attempt.State()
	fmt.Fprintf(s.out, "Login: %s\n", st)
	if st == auth.StateAwaitingCode || st == auth.StateCodeRejected {
		if p := s.attempt.Pending(); p != nil {
			left := p.ExpiresAt.Sub(s.now()).Round(time.Second)
			fmt.Fprintf(s.out, "Code for %s expires in %s\n", p.Identifier, left)
		}
		fmt.Fprintf(s.out, "[%s]\n", s.cd.State().Label())
	}
}

func (s *shell) me(ctx context.Context) {
	u, err := s.auth.CurrentUser(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "%s  %s <%s> (%s)\n", u.ID, u.Name, u.Email, u.Role)
}

func (s *shell) own(ctx context.Context) {
	m, err := s.hood.FetchOwn(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	if m == nil {
		fmt.Fprintln(s.out, "Your neighborhood has no map location yet.")
		return
	}
	printMarker(s.out, *m)
}

func (s *shell) others(ctx context.Context) {
	markers, err := s.hood.FetchOthers(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	if len(markers) == 0 {
		fmt.Fprintln(s.out, "No other neighborhoods")
		return
	}

	own, err := s.hood.FetchOwn(ctx)
	if err == nil && own != nil {
		if near := neighborhood.Nearby(*own, markers, 6); len(near) > 0 {
			fmt.Fprintf(s.out, "%d neighborhood(s) next to yours:\n", len(near))
			for _, m := range near {
				printMarker(s.out, m)
			}
		}
	}

	groups := neighborhood.GroupByCell(markers, 5)
	cells := make([]string, 0, len(groups))
	for c := range groups {
		cells = append(cells, c)
	}
	sort.Strings(cells)
	for _, c := range cells {
		fmt.Fprintf(s.out, "area %s:\n", c)
		for _, m := range groups[c] {
			printMarker(s.out, m)
		}
	}
}

func (s *shell) details(ctx context.Context) {
	d, err := s.hood.FetchDetails(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "Neighborhood %s (terminal %s)\n", d.Name, d.TerminalID)
	fmt.Fprintf(s.out, "  address:     %s\n", d.TerminalAddress)
	fmt.Fprintf(s.out, "  households:  %d, residents: %d, avg size: %.1f\n", d.ApproxHouseholds, d.ApproxResidents, d.AvgHouseholdSize)
	fmt.Fprintf(s.out, "  subsidence:  %s\n", d.FloodwaterSubsidence)
	fmt.Fprintf(s.out, "  hazards:     %s\n", strings.Join(d.FloodRelatedHazards, ", "))
	fmt.Fprintf(s.out, "  notes:       %s\n", strings.Join(d.NotableInfo, "; "))
	fmt.Fprintf(s.out, "  focal:       %s %s %s\n", d.FocalPerson.Name, d.FocalPerson.ContactNo, d.FocalPerson.Email)
	if d.AlternativeFocalPerson.Name != "" {
		fmt.Fprintf(s.out, "  alternative: %s %s %s\n", d.AlternativeFocalPerson.Name, d.AlternativeFocalPerson.ContactNo, d.AlternativeFocalPerson.Email)
	}
}

func (s *shell) edit(ctx context.Context) {
	d, err := s.hood.FetchDetails(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	u, err := s.p.NeighborhoodEdit(*d)
	if err != nil {
		s.fail(err)
		return
	}
	if err := s.hood.Update(ctx, u); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintln(s.out, "Neighborhood updated")
}

func (s *shell) logout(ctx context.Context) {
	if err := s.auth.Logout(ctx); err != nil {
		s.fail(err)
		return
	}
	s.attempt.Reset()
	s.cd.Stop()
	fmt.Fprintln(s.out, "Logged out")
}

// fail prints the user-facing message of err. Session expiry is announced by
// the logout callback and is not repeated here.
func (s *shell) fail(err error) {
	if errors.Is(err, models.ErrAuthExpired) && s.hadSession {
		return
	}
	fmt.Fprintf(s.out, "Error: %s\n", models.MessageOf(err))
}

func printMarker(w io.Writer, m models.Marker) {
	fmt.Fprintf(w, "  %-8s %-24s %.5f,%.5f  %s", m.NeighborhoodID, m.FocalPersonName, m.Coordinates.Latitude, m.Coordinates.Longitude, m.Address)
	if len(m.Hazards) > 0 {
		fmt.Fprintf(w, "  [%s]", strings.Join(m.Hazards, ", "))
	}
	fmt.Fprintln(w)
}
