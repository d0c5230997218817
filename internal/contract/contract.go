// Package contract holds the fixed V31 scanner contract: the required import
// block, the canonical pipeline methods, and the identifiers the validator and
// enforcer agree on. Changing anything here changes compliance for every
// scanner, so the checklist version in package validator must move with it.
package contract

import (
	"regexp"
	"strings"
)

// Name is the contract identifier reported in workflow output.
const Name = "V31"

// RequiredImports is the import block every compliant scanner starts with, in
// canonical order.
var RequiredImports = []string{
	"import pandas as pd",
	"import numpy as np",
	"import requests",
	"import time",
	"from datetime import datetime, timedelta",
	"from concurrent.futures import ThreadPoolExecutor, as_completed",
	"from typing import Dict, List, Optional, Tuple",
	"import pandas_market_calendars as mcal",
}

// Canonical pipeline method names.
const (
	MethodRunScan          = "run_scan"
	MethodFetchGroupedData = "fetch_grouped_data"
	MethodSimpleFeatures   = "compute_simple_features"
	MethodApplyFilters     = "apply_smart_filters"
	MethodFullFeatures     = "compute_full_features"
	MethodDetectPatterns   = "detect_patterns"
)

// CanonicalMethods lists the guaranteed methods in the order they are inserted.
var CanonicalMethods = []string{
	MethodRunScan,
	MethodFetchGroupedData,
	MethodSimpleFeatures,
	MethodApplyFilters,
	MethodFullFeatures,
	MethodDetectPatterns,
}

// Deprecated method names. The enforcer removes them wherever they are defined.
const (
	DeprecatedExecute         = "execute"
	DeprecatedRunAndSave      = "run_and_save"
	DeprecatedFetchAllGrouped = "fetch_all_grouped_data"
)

// DeprecatedMethods lists every method the contract forbids.
var DeprecatedMethods = []string{
	DeprecatedExecute,
	DeprecatedRunAndSave,
	DeprecatedFetchAllGrouped,
}

// Identifiers the checklist looks for.
const (
	D0StartVar          = "d0_start_user"
	D0EndVar            = "d0_end_user"
	VolumeIdentifier    = "dollar_volume"
	LegacyVolumeIdent   = "$vol"
	CalendarModule      = "pandas_market_calendars"
	GroupedDailyPath    = "/v2/aggs/grouped/locale/us/market/stocks/"
	ConfigDictMarker    = "P = {"
	InstanceParamsField = "params"
)

// Parameter block openers: the module-level P dictionary and a
// self.<name>params dictionary assigned in a method.
var (
	ConfigDictRe         = regexp.MustCompile(`(?m)^[ \t]*P[ \t]*=[ \t]*\{`)
	InstanceParamsDictRe = regexp.MustCompile(`self\.\w*params[ \t]*=[ \t]*\{`)
)

// encodingRe is Python's source encoding declaration, honoured only on the
// first two lines of a file.
var encodingRe = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-\w.]+`)

// IsHeaderComment reports whether line belongs to the file header that must
// stay on top: a shebang, an editor mode line or an encoding declaration.
func IsHeaderComment(line string) bool {
	return strings.HasPrefix(line, "#!") || strings.HasPrefix(line, "# -*-") ||
		strings.HasPrefix(line, "# coding") || encodingRe.MatchString(line)
}

var (
	defRe         = regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+(\w+)[ \t]*\(`)
	configClassRe = regexp.MustCompile(`(?i)(config|params|parameters|settings)`)
)

// DefRegexp matches any function or method definition and captures its name.
func DefRegexp() *regexp.Regexp { return defRe }

// HasDef reports whether code defines a function or method called name at any
// indentation.
func HasDef(code, name string) bool {
	for _, m := range defRe.FindAllStringSubmatch(code, -1) {
		if m[1] == name {
			return true
		}
	}
	return false
}

// IsConfigClassName reports whether a class name looks like a configuration
// holder rather than the scanner itself.
func IsConfigClassName(name string) bool {
	return configClassRe.MatchString(name)
}

// IsRequiredImport reports whether line, ignoring surrounding and repeated
// whitespace, is one of the required imports.
func IsRequiredImport(line string) bool {
	_, ok := RequiredImportIndex(line)
	return ok
}

// RequiredImportIndex returns the canonical position of a required import line.
func RequiredImportIndex(line string) (int, bool) {
	norm := strings.Join(strings.Fields(line), " ")
	for i, imp := range RequiredImports {
		if norm == imp {
			return i, true
		}
	}
	return 0, false
}

// IsCanonical reports whether name is one of the guaranteed pipeline methods.
func IsCanonical(name string) bool {
	for _, m := range CanonicalMethods {
		if m == name {
			return true
		}
	}
	return false
}

// IsDeprecated reports whether name is a forbidden method.
func IsDeprecated(name string) bool {
	for _, m := range DeprecatedMethods {
		if m == name {
			return true
		}
	}
	return false
}
