// skeleton-office-tools - flatten annotations into PDF documents
// Copyright (C) 2026  The skeleton-office-tools authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads the configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/registry"
	"github.com/opensaas-skeletons/skeleton-office-tools/store"
)

// Conf is the contents of a configuration file.
type Conf struct {
	Store store.Conf `json:"store"`

	// Fonts maps font family names to TrueType files.  These fonts are
	// available for signatures, in addition to the bundled fonts.
	Fonts map[string]string `json:"fonts"`

	Limits Limits `json:"limits"`

	// LogLevel is one of the level names understood by logrus.
	LogLevel string `json:"log_level"`
}

// Limits gives the range of allowed font sizes.
type Limits struct {
	MinFontSize float64 `json:"min_font_size"`
	MaxFontSize float64 `json:"max_font_size"`
}

// Default returns the configuration used when no configuration file is
// given.
func Default() *Conf {
	return &Conf{
		Store: store.Conf{Type: "memory"},
		Limits: Limits{
			MinFontSize: annotation.DefaultLimits.MinFontSize,
			MaxFontSize: annotation.DefaultLimits.MaxFontSize,
		},
		LogLevel: "info",
	}
}

// Load reads a configuration file.  Values missing from the file are
// taken from [Default].
func Load(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := Default()
	err = json.Unmarshal(data, conf)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	err = conf.check()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return conf, nil
}

func (conf *Conf) check() error {
	if conf.Store.Type == "" {
		conf.Store.Type = "memory"
	}
	if conf.Limits.MinFontSize <= 0 || conf.Limits.MaxFontSize < conf.Limits.MinFontSize {
		return fmt.Errorf("invalid font size limits %g-%g",
			conf.Limits.MinFontSize, conf.Limits.MaxFontSize)
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	_, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	for family, path := range conf.Fonts {
		if family == "" || path == "" {
			return errors.New("font entries need a family name and a file")
		}
	}
	return nil
}

// AnnotationLimits returns the font size limits for annotations.
func (conf *Conf) AnnotationLimits() annotation.Limits {
	return annotation.Limits{
		MinFontSize: conf.Limits.MinFontSize,
		MaxFontSize: conf.Limits.MaxFontSize,
	}
}

// Level returns the configured log level.
func (conf *Conf) Level() logrus.Level {
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Registry returns a font registry containing the bundled fonts and the
// fonts listed in the configuration.  Configured fonts replace bundled
// fonts of the same name.
func (conf *Conf) Registry() *registry.Registry {
	reg := registry.Default()
	for family, path := range conf.Fonts {
		reg.AddFile(family, path)
	}
	return reg
}
