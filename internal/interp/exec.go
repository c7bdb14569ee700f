package interp

import (
	"errors"
	"strings"

	"nickandperla.net/emt/internal/scanner"
	"nickandperla.net/emt/internal/script"
	"nickandperla.net/emt/internal/token"
)

// executeToken performs the output or side effect a token calls for.
// locals, when non-nil, is the innermost macro scope.
func (in *Interp) executeToken(t token.Token, locals map[string]script.Value) error {
	switch t := t.(type) {
	case *token.Text:
		return in.stream().WriteString(t.Text)
	case *token.Literal:
		return in.stream().WriteString(string(t.Char))
	case *token.Whitespace:
		return nil
	case *token.Escape:
		return in.stream().WriteString(string(t.Value))
	case *token.Comment:
		return nil
	case *token.ContextName:
		if ctx := in.context(); ctx != nil {
			ctx.Name = t.Name
		}
		return nil
	case *token.ContextLine:
		if ctx := in.context(); ctx != nil {
			ctx.SetLine(t.Line)
		}
		return nil
	case *token.Significator:
		return in.significate(t.Key, t.Expr, locals)
	case *token.Expression:
		return in.execExpression(t, locals)
	case *token.Simple:
		v, err := in.evalCode(t.Code, locals)
		if err != nil {
			return err
		}
		return in.writeValue(v)
	case *token.Repr:
		v, err := in.evalCode(t.Code, locals)
		if err != nil {
			return err
		}
		return in.stream().WriteString(v.Repr())
	case *token.InPlace:
		return in.execInPlace(t, locals)
	case *token.StringLit:
		v, err := in.evalCode(t.Raw, locals)
		if err != nil {
			return err
		}
		return in.writeValue(v)
	case *token.Statement:
		return in.execCode(t.Code, locals)
	case *token.Control:
		return in.runControl(t, locals)
	}
	return scanner.Parsef("unsupported token %T", t)
}

// writeValue renders v onto the active stream. None produces nothing.
func (in *Interp) writeValue(v script.Value) error {
	if v == script.None {
		return nil
	}
	return in.stream().WriteString(v.String())
}

func (in *Interp) execExpression(t *token.Expression, locals map[string]script.Value) error {
	v, err := in.expressionValue(t, locals)
	if err != nil {
		return err
	}
	return in.writeValue(v)
}

// expressionValue resolves @(test ? then ! else $ except): the test
// selects a branch, and a host error anywhere falls back to the except
// part when one is present.
func (in *Interp) expressionValue(t *token.Expression, locals map[string]script.Value) (script.Value, error) {
	v, err := in.evalPart(t.Test, locals)
	if err == nil && t.HasThen {
		if v.Truth() {
			v, err = in.evalPart(t.Then, locals)
		} else if t.HasElse {
			v, err = in.evalPart(t.Else, locals)
		} else {
			v = script.None
		}
	}
	if err != nil && t.HasExcept {
		var se *script.Error
		if errors.As(err, &se) {
			return in.evalPart(t.Except, locals)
		}
	}
	return v, err
}

func (in *Interp) evalPart(code string, locals map[string]script.Value) (script.Value, error) {
	if strings.TrimSpace(code) == "" {
		return script.None, nil
	}
	return in.evalCode(code, locals)
}

// execInPlace writes the markup back around the freshly evaluated
// value, so the output document carries its own refreshed source.
func (in *Interp) execInPlace(t *token.InPlace, locals map[string]script.Value) error {
	if err := in.stream().WriteString(string(in.prefix) + ":" + t.Code + ":"); err != nil {
		return err
	}
	v, err := in.evalCode(t.Code, locals)
	if err != nil {
		return err
	}
	if err := in.writeValue(v); err != nil {
		return err
	}
	return in.stream().WriteString(":")
}

// evalCond evaluates a control condition, short-circuiting the literal
// spellings that appear in generated markup.
func (in *Interp) evalCond(code string, locals map[string]script.Value) (bool, error) {
	switch strings.TrimSpace(code) {
	case "1", "True":
		return true, nil
	case "0", "False":
		return false, nil
	}
	v, err := in.evalCode(code, locals)
	if err != nil {
		return false, err
	}
	return v.Truth(), nil
}

// bind assigns into the innermost scope: macro locals when present,
// otherwise the globals.
func (in *Interp) bind(name string, v script.Value, locals map[string]script.Value) {
	if locals != nil {
		locals[name] = v
	} else {
		in.globals.Set(name, v)
	}
}

// runBody executes a clause body in order. Flow signals and errors
// propagate to the caller.
func (in *Interp) runBody(body []token.Token, locals map[string]script.Value) error {
	for _, t := range body {
		if err := in.executeToken(t, locals); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) runControl(t *token.Control, locals map[string]script.Value) error {
	switch t.Kind {
	case token.KindIf:
		return in.runIf(t, locals)
	case token.KindFor:
		return in.runFor(t, locals)
	case token.KindWhile:
		return in.runWhile(t, locals)
	case token.KindTry:
		return in.runTry(t, locals)
	case token.KindDef:
		return in.runDef(t, locals)
	case token.KindContinue:
		return errContinue
	case token.KindBreak:
		return errBreak
	}
	return scanner.Parsef("misplaced control: %q", t.Kind)
}

// clause is one arm of a control block: the primary marker or a
// secondary one, with the tokens that follow it.
type clause struct {
	kind string
	args string
	body []token.Token
}

// partition splits a control block's children into clauses at its
// secondary markers. Secondary kinds not in allowed are rejected.
func partition(t *token.Control, allowed ...string) ([]clause, error) {
	clauses := []clause{{kind: t.Kind, args: t.Args}}
	for _, child := range t.Children {
		if c, ok := child.(*token.Control); ok && token.IsSecondary(c.Kind) {
			permitted := false
			for _, a := range allowed {
				if c.Kind == a {
					permitted = true
					break
				}
			}
			if !permitted {
				return nil, scanner.Parsef("unexpected %q in %q block", c.Kind, t.Kind)
			}
			clauses = append(clauses, clause{kind: c.Kind, args: c.Args})
			continue
		}
		last := &clauses[len(clauses)-1]
		last.body = append(last.body, child)
	}
	return clauses, nil
}

func (in *Interp) runIf(t *token.Control, locals map[string]script.Value) error {
	clauses, err := partition(t, token.KindElif, token.KindElse)
	if err != nil {
		return err
	}
	for i, c := range clauses {
		if c.kind == token.KindElse && i != len(clauses)-1 {
			return scanner.Parsef("else must be the last clause of an if block")
		}
	}
	for _, c := range clauses {
		if c.kind == token.KindElse {
			return in.runBody(c.body, locals)
		}
		ok, err := in.evalCond(c.args, locals)
		if err != nil {
			return err
		}
		if ok {
			return in.runBody(c.body, locals)
		}
	}
	return nil
}

func (in *Interp) runFor(t *token.Control, locals map[string]script.Value) error {
	names, seqExpr, err := parseForArgs(t.Args)
	if err != nil {
		return err
	}
	clauses, err := partition(t, token.KindElse)
	if err != nil {
		return err
	}
	body, elseBody, hasElse, err := loopClauses(clauses)
	if err != nil {
		return err
	}
	seq, err := in.evalCode(seqExpr, locals)
	if err != nil {
		return err
	}
	items, err := script.Iterate(seq)
	if err != nil {
		return err
	}
	broke := false
	for _, item := range items {
		if err := in.bindLoop(names, item, locals); err != nil {
			return err
		}
		err := in.runBody(body, locals)
		if err == errContinue {
			continue
		}
		if err == errBreak {
			broke = true
			break
		}
		if err != nil {
			return err
		}
	}
	if !broke && hasElse {
		return in.runBody(elseBody, locals)
	}
	return nil
}

func (in *Interp) runWhile(t *token.Control, locals map[string]script.Value) error {
	clauses, err := partition(t, token.KindElse)
	if err != nil {
		return err
	}
	body, elseBody, hasElse, err := loopClauses(clauses)
	if err != nil {
		return err
	}
	broke := false
	for {
		ok, err := in.evalCond(t.Args, locals)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		err = in.runBody(body, locals)
		if err == errContinue {
			continue
		}
		if err == errBreak {
			broke = true
			break
		}
		if err != nil {
			return err
		}
	}
	if !broke && hasElse {
		return in.runBody(elseBody, locals)
	}
	return nil
}

// loopClauses validates a loop's clause list: the body, then at most
// one trailing else.
func loopClauses(clauses []clause) (body, elseBody []token.Token, hasElse bool, err error) {
	body = clauses[0].body
	switch len(clauses) {
	case 1:
	case 2:
		elseBody = clauses[1].body
		hasElse = true
	default:
		return nil, nil, false, scanner.Parsef("loop allows a single else clause")
	}
	return body, elseBody, hasElse, nil
}

func (in *Interp) runTry(t *token.Control, locals map[string]script.Value) error {
	clauses, err := partition(t, token.KindExcept, token.KindFinally)
	if err != nil {
		return err
	}
	var excepts []clause
	var finally []token.Token
	hasFinally := false
	for i, c := range clauses[1:] {
		switch c.kind {
		case token.KindExcept:
			if hasFinally {
				return scanner.Parsef("except after finally")
			}
			excepts = append(excepts, c)
		case token.KindFinally:
			if hasFinally {
				return scanner.Parsef("duplicate finally")
			}
			if len(excepts) > 0 {
				return scanner.Parsef("try cannot mix except and finally")
			}
			if i != len(clauses)-2 {
				return scanner.Parsef("finally must be the last clause")
			}
			finally = c.body
			hasFinally = true
		}
	}
	if len(excepts) == 0 && !hasFinally {
		return scanner.Parsef("try requires except or finally")
	}

	bodyErr := in.runBody(clauses[0].body, locals)
	if hasFinally {
		if err := in.runBody(finally, locals); err != nil {
			return err
		}
		return bodyErr
	}
	if bodyErr == nil {
		return nil
	}
	if isFlowSignal(bodyErr) {
		return bodyErr
	}
	var se *script.Error
	if !errors.As(bodyErr, &se) {
		return bodyErr
	}
	for _, c := range excepts {
		match, bindName, err := in.exceptMatches(c.args, se, locals)
		if err != nil {
			return err
		}
		if match {
			if bindName != "" {
				in.bind(bindName, se, locals)
			}
			return in.runBody(c.body, locals)
		}
	}
	return bodyErr
}

// exceptMatches decides whether one except clause handles se. The
// clause may name a class expression and bind the error with as.
func (in *Interp) exceptMatches(args string, se *script.Error, locals map[string]script.Value) (bool, string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return true, "", nil
	}
	bindName := ""
	if i := findStandaloneWord(args, "as"); i >= 0 {
		bindName = strings.TrimSpace(args[i+2:])
		if !validName(bindName) {
			return false, "", scanner.Parsef("invalid except binding: %q", bindName)
		}
		args = strings.TrimSpace(args[:i])
	}
	v, err := in.evalCode(args, locals)
	if err != nil {
		return false, "", err
	}
	cls, ok := v.(*script.Class)
	if !ok {
		return false, "", script.Raise(script.TypeError, "except needs an error class, got %s", v.Type())
	}
	return se.Class.Is(cls), bindName, nil
}

func (in *Interp) runDef(t *token.Control, locals map[string]script.Value) error {
	name, params, err := parseDefArgs(t.Args)
	if err != nil {
		return err
	}
	if _, err := partition(t); err != nil {
		return err
	}
	body := t.Children
	fn := &script.Func{
		Name: name,
		Fn: func(env *script.Env, args []script.Value) (script.Value, error) {
			if len(args) != len(params) {
				return nil, script.Raise(script.TypeError,
					"%s() takes %d arguments, got %d", name, len(params), len(args))
			}
			frame := make(map[string]script.Value, len(params))
			for i, p := range params {
				frame[p] = args[i]
			}
			out, err := in.expandTokens(body, frame)
			if err != nil {
				return nil, err
			}
			return script.Str(out), nil
		},
	}
	in.bind(name, fn, locals)
	return nil
}

// bindLoop assigns one iteration item to the loop names, unpacking a
// list when several names are given.
func (in *Interp) bindLoop(names []string, item script.Value, locals map[string]script.Value) error {
	if len(names) == 1 {
		in.bind(names[0], item, locals)
		return nil
	}
	l, ok := item.(*script.List)
	if !ok {
		return script.Raise(script.TypeError, "cannot unpack %s into %d names", item.Type(), len(names))
	}
	if len(l.Items) != len(names) {
		return script.Raise(script.ValueError, "expected %d values to unpack, got %d", len(names), len(l.Items))
	}
	for i, n := range names {
		in.bind(n, l.Items[i], locals)
	}
	return nil
}

// parseForArgs splits "NAME[, NAME...] in EXPR" at the first
// standalone in.
func parseForArgs(args string) ([]string, string, error) {
	i := findStandaloneWord(args, "in")
	if i <= 0 {
		return nil, "", scanner.Parsef("for requires NAME in EXPR, got %q", args)
	}
	var names []string
	for _, part := range strings.Split(args[:i], ",") {
		name := strings.TrimSpace(part)
		if !validName(name) {
			return nil, "", scanner.Parsef("invalid loop name: %q", name)
		}
		names = append(names, name)
	}
	expr := strings.TrimSpace(args[i+2:])
	if expr == "" {
		return nil, "", scanner.Parsef("for requires an iterable expression")
	}
	return names, expr, nil
}

// parseDefArgs splits "NAME(PARAM, ...)" or a bare NAME.
func parseDefArgs(args string) (string, []string, error) {
	args = strings.TrimSpace(args)
	open := strings.IndexByte(args, '(')
	if open < 0 {
		if !validName(args) {
			return "", nil, scanner.Parsef("invalid macro name: %q", args)
		}
		return args, nil, nil
	}
	name := strings.TrimSpace(args[:open])
	if !validName(name) {
		return "", nil, scanner.Parsef("invalid macro name: %q", name)
	}
	if !strings.HasSuffix(args, ")") {
		return "", nil, scanner.Parsef("malformed macro signature: %q", args)
	}
	inner := strings.TrimSpace(args[open+1 : len(args)-1])
	if inner == "" {
		return name, nil, nil
	}
	var params []string
	for _, part := range strings.Split(inner, ",") {
		p := strings.TrimSpace(part)
		if !validName(p) {
			return "", nil, scanner.Parsef("invalid macro parameter: %q", p)
		}
		params = append(params, p)
	}
	return name, params, nil
}

func validName(name string) bool {
	for i, r := range name {
		if i == 0 {
			if !scanner.IsWordStart(r) {
				return false
			}
		} else if !scanner.IsWordChar(r) {
			return false
		}
	}
	return name != ""
}

// findStandaloneWord returns the index of the first occurrence of word
// in s that is not part of a longer identifier, or -1.
func findStandaloneWord(s, word string) int {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] != word {
			continue
		}
		if i > 0 && scanner.IsWordChar(rune(s[i-1])) {
			continue
		}
		if i+len(word) < len(s) && scanner.IsWordChar(rune(s[i+len(word)])) {
			continue
		}
		return i
	}
	return -1
}
