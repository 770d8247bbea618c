// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package rule

import (
	"encoding/json"
	"os"

	"github.com/sqreen/go-aspect/aspect"
	"github.com/sqreen/go-aspect/internal/sqlib/sqerrors"
)

// Pack is a named list of rules, such as the content of a rules file.
type Pack struct {
	ID    string `json:"pack_id"`
	Rules []Rule `json:"rules"`
}

// Rule is a declarative aspect: the JavaScript callback is attached at the
// position of the hookpoint method when the condition is true.
type Rule struct {
	Name      string    `json:"name"`
	Hookpoint Hookpoint `json:"hookpoint"`
	// Optional expression evaluated before calling the callback. Its
	// environment is the `Call` value of the invocation.
	Condition string `json:"condition"`
	// JavaScript source defining the function `callback(call)`.
	Callback string `json:"callback"`
	// Disabled rules are ignored.
	Disabled bool `json:"disabled"`
}

type Hookpoint struct {
	// Class name, as returned by `aspect.Class.Name()`.
	Class    string          `json:"class"`
	Method   aspect.Selector `json:"method"`
	Position string          `json:"position"`
}

// ReadFile reads the JSON pack of rules of the file.
func ReadFile(path string) (*Pack, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, sqerrors.Wrap(err, "could not read the rules file")
	}
	var pack Pack
	if err := json.Unmarshal(buf, &pack); err != nil {
		return nil, sqerrors.Wrapf(err, "could not parse the rules file `%s`", path)
	}
	return &pack, nil
}
