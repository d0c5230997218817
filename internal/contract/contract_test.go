package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredImportIndex(t *testing.T) {
	i, ok := RequiredImportIndex("  import   pandas as pd  ")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = RequiredImportIndex("import pandas_market_calendars as mcal")
	assert.True(t, ok)
	assert.Equal(t, len(RequiredImports)-1, i)

	_, ok = RequiredImportIndex("import os")
	assert.False(t, ok)
}

func TestHasDef(t *testing.T) {
	code := "class S:\n    def run_scan(self):\n        pass\n\nasync def fetch_grouped_data(x):\n    pass\n"
	assert.True(t, HasDef(code, MethodRunScan))
	assert.True(t, HasDef(code, MethodFetchGroupedData))
	assert.False(t, HasDef(code, MethodDetectPatterns))
	assert.False(t, HasDef("run_scan = 1", MethodRunScan))
}

func TestIsConfigClassName(t *testing.T) {
	assert.True(t, IsConfigClassName("ScannerConfig"))
	assert.True(t, IsConfigClassName("BacksideParams"))
	assert.False(t, IsConfigClassName("BacksideScanner"))
}

func TestCanonicalAndDeprecatedAreDisjoint(t *testing.T) {
	for _, m := range DeprecatedMethods {
		assert.False(t, IsCanonical(m), m)
	}
	for _, m := range CanonicalMethods {
		assert.False(t, IsDeprecated(m), m)
	}
}

func TestParameterBlockPatterns(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		config   bool
		instance bool
	}{
		{"module dict", "P = {\n    'a': 1,\n}\n", true, false},
		{"indented dict", "if True:\n    P={'a': 1}\n", true, false},
		{"other name", "PARAMS = {'a': 1}\n", false, false},
		{"instance params", "        self.params = {'a': 1}\n", false, true},
		{"prefixed instance params", "        self.scan_params = {'a': 1}\n", false, true},
		{"instance other", "        self.cache = {}\n", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.config, ConfigDictRe.MatchString(tt.code))
			assert.Equal(t, tt.instance, InstanceParamsDictRe.MatchString(tt.code))
		})
	}
}

func TestIsHeaderComment(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"#!/usr/bin/env python3", true},
		{"# -*- coding: utf-8 -*-", true},
		{"# coding: utf-8", true},
		{"# coding=latin-1", true},
		{"# vim: set fileencoding=utf-8 :", true},
		{"# Gap scanner", false},
		{"import pandas as pd", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeaderComment(tt.line))
		})
	}
}
