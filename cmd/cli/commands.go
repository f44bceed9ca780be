package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// command maps one subcommand onto one RPC.
type command struct {
	name      string
	method    string
	help      string
	public    bool
	saveToken bool
	build     func(args []string) (map[string]any, error)
	out       func(resp map[string]any) error
}

var commands = []command{
	{name: "register", method: "Register", help: "-first <name> -last <name> [-email e] [-p pwd] [-app a] (saves token)", public: true, saveToken: true, build: buildRegister},
	{name: "login", method: "IssueToken", help: "-u <first_last> [-p pwd] -scopes s1,s2 [-duration n -unit days|months|years] [-app a] (saves token)", public: true, saveToken: true, build: buildLogin},
	{name: "tokens", method: "ListTokens", help: "list tokens of the account", build: noArgs("tokens")},
	{name: "revoke", method: "RevokeTokens", help: "revoke every token of the account", build: noArgs("revoke")},
	{name: "profile", method: "GetProfile", help: "show profile and devices", build: noArgs("profile")},
	{name: "delete-account", method: "DeleteAccount", help: "delete account, tokens and goals", build: noArgs("delete-account")},
	{name: "samples", method: "GetSamples", help: "[-day dd/mm/yyyy]", build: buildSamples},
	{name: "latest", method: "GetLatestSamples", help: "[-n count]", build: buildLatest},
	{name: "average-day", method: "GetAverageDay", help: "-hours 08:00,12:00 [-error minutes]", build: buildAverageDay},
	{name: "raw", method: "GetRawData", help: "[-out file]", build: buildRaw, out: writeRaw},
	{name: "upload", method: "PutRawData", help: "-file <export.csv|->", build: buildUpload},
	{name: "hour-trend", method: "GetHourTrend", help: "-from dd/mm/yyyy-HH:MM -to dd/mm/yyyy-HH:MM [-error x]", build: buildHourTrend},
	{name: "day-trend", method: "GetDayTrend", help: "-day1 dd/mm/yyyy -day2 dd/mm/yyyy [-error x]", build: buildDayTrend},
	{name: "month-trend", method: "GetMonthTrend", help: "-month1 m -year1 y -month2 m -year2 y [-error x]", build: buildMonthTrend},
	{name: "stats", method: "GetUserStats", help: "statistics of the account's readings", build: noArgs("stats")},
	{name: "all-stats", method: "GetAllStats", help: "statistics across every user", build: noArgs("all-stats")},
	{name: "goals", method: "ListGoals", help: "list goals", build: noArgs("goals")},
	{name: "goal-add", method: "CreateGoal", help: "-title t [-status s] [-start RFC3339] [-end RFC3339] [-average x] [-trend increase|decrease|steady]", build: buildGoalAdd},
	{name: "goal-set", method: "UpdateGoal", help: "-title t -field f -value v", build: buildGoalSet},
	{name: "goal-rm", method: "DeleteGoal", help: "-title t", build: buildGoalRm},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func noArgs(name string) func([]string) (map[string]any, error) {
	return func(args []string) (map[string]any, error) {
		fs := newFlags(name)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	}
}

// list splits "a,b" into a request list, dropping blanks.
func list(csv string) []any {
	out := []any{}
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func buildRegister(args []string) (map[string]any, error) {
	fs := newFlags("register")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	pwd := fs.String("p", "", "password (prompted when empty)")
	app := fs.String("app", "", "app name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *first == "" || *last == "" {
		return nil, errors.New("need -first and -last")
	}
	password, err := readPassword(*pwd)
	if err != nil {
		return nil, err
	}
	req := map[string]any{"firstname": *first, "lastname": *last, "password": password}
	if *email != "" {
		req["email"] = *email
	}
	if *app != "" {
		req["app_name"] = *app
	}
	return req, nil
}

func buildLogin(args []string) (map[string]any, error) {
	fs := newFlags("login")
	user := fs.String("u", "", "username (first_last)")
	pwd := fs.String("p", "", "password (prompted when empty)")
	scopes := fs.String("scopes", "profile,samples,goals,stats", "comma separated scopes")
	n := fs.Int("duration", 1, "token lifetime amount")
	unit := fs.String("unit", "days", "days, months or years")
	app := fs.String("app", "", "app name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *user == "" {
		return nil, errors.New("need -u")
	}
	password, err := readPassword(*pwd)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"username":      *user,
		"password":      password,
		"scopes":        list(*scopes),
		"duration":      *n,
		"duration_unit": *unit,
	}
	if *app != "" {
		req["app_name"] = *app
	}
	return req, nil
}

func buildSamples(args []string) (map[string]any, error) {
	fs := newFlags("samples")
	day := fs.String("day", "", "dd/mm/yyyy, today when empty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	req := map[string]any{}
	if *day != "" {
		req["day"] = *day
	}
	return req, nil
}

func buildLatest(args []string) (map[string]any, error) {
	fs := newFlags("latest")
	n := fs.Int("n", 0, "number of readings, 0 for the server default")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	req := map[string]any{}
	if *n > 0 {
		req["n"] = *n
	}
	return req, nil
}

func buildAverageDay(args []string) (map[string]any, error) {
	fs := newFlags("average-day")
	hours := fs.String("hours", "", "comma separated HH:MM")
	tol := fs.Int("error", 0, "tolerance in minutes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *hours == "" {
		return nil, errors.New("need -hours")
	}
	return map[string]any{"hours": list(*hours), "error": *tol}, nil
}

var rawOut string

func buildRaw(args []string) (map[string]any, error) {
	fs := newFlags("raw")
	fs.StringVar(&rawOut, "out", "-", "file to write, '-' for stdout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func writeRaw(resp map[string]any) error {
	data, _ := resp["data"].(string)
	if rawOut == "" || rawOut == "-" {
		_, err := io.WriteString(os.Stdout, data)
		return err
	}
	if err := os.WriteFile(rawOut, []byte(data), 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %dB to %s\n", len(data), rawOut)
	return nil
}

func buildUpload(args []string) (map[string]any, error) {
	fs := newFlags("upload")
	file := fs.String("file", "", "export file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *file == "" {
		return nil, errors.New("need -file")
	}
	data, err := readAll(*file)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": string(data)}, nil
}

func buildHourTrend(args []string) (map[string]any, error) {
	fs := newFlags("hour-trend")
	from := fs.String("from", "", "dd/mm/yyyy-HH:MM")
	to := fs.String("to", "", "dd/mm/yyyy-HH:MM")
	tol := fs.Float64("error", 0, "tolerance")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *from == "" || *to == "" {
		return nil, errors.New("need -from and -to")
	}
	return map[string]any{"from": *from, "to": *to, "error": *tol}, nil
}

func buildDayTrend(args []string) (map[string]any, error) {
	fs := newFlags("day-trend")
	d1 := fs.String("day1", "", "dd/mm/yyyy")
	d2 := fs.String("day2", "", "dd/mm/yyyy")
	tol := fs.Float64("error", 0, "tolerance")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *d1 == "" || *d2 == "" {
		return nil, errors.New("need -day1 and -day2")
	}
	return map[string]any{"day1": *d1, "day2": *d2, "error": *tol}, nil
}

func buildMonthTrend(args []string) (map[string]any, error) {
	fs := newFlags("month-trend")
	m1 := fs.Int("month1", 0, "first month")
	y1 := fs.Int("year1", 0, "first year")
	m2 := fs.Int("month2", 0, "last month")
	y2 := fs.Int("year2", 0, "last year")
	tol := fs.Float64("error", 0, "tolerance")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *m1 == 0 || *y1 == 0 || *m2 == 0 || *y2 == 0 {
		return nil, errors.New("need -month1 -year1 -month2 -year2")
	}
	return map[string]any{"month1": *m1, "year1": *y1, "month2": *m2, "year2": *y2, "error": *tol}, nil
}

func buildGoalAdd(args []string) (map[string]any, error) {
	fs := newFlags("goal-add")
	title := fs.String("title", "", "title")
	status := fs.String("status", "", "not_started, on_going, completed or failed")
	start := fs.String("start", "", "start RFC3339")
	end := fs.String("end", "", "end RFC3339")
	avg := fs.Float64("average", 0, "average target")
	trend := fs.String("trend", "", "trend target")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *title == "" {
		return nil, errors.New("need -title")
	}
	req := map[string]any{"title": *title}
	opt := map[string]string{"status": *status, "start_datetime": *start, "end_datetime": *end, "trend_target": *trend}
	for k, v := range opt {
		if v != "" {
			req[k] = v
		}
	}
	if *avg != 0 {
		req["average_target"] = *avg
	}
	return req, nil
}

func buildGoalSet(args []string) (map[string]any, error) {
	fs := newFlags("goal-set")
	title := fs.String("title", "", "title")
	field := fs.String("field", "", "field to change")
	value := fs.String("value", "", "new value, empty clears")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *title == "" || *field == "" {
		return nil, errors.New("need -title and -field")
	}
	return map[string]any{"title": *title, "field": *field, "value": *value}, nil
}

func buildGoalRm(args []string) (map[string]any, error) {
	fs := newFlags("goal-rm")
	title := fs.String("title", "", "title")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *title == "" {
		return nil, errors.New("need -title")
	}
	return map[string]any{"title": *title}, nil
}
