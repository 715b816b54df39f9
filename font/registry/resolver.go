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

package registry

import (
	"github.com/sirupsen/logrus"

	"github.com/opensaas-skeletons/skeleton-office-tools/font"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/standard"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/truetype"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

// Resolver selects the fonts for one flatten operation.
// A Resolver must not be used concurrently.
type Resolver struct {
	reg *Registry
	log logrus.FieldLogger

	text   *standard.Font
	loaded map[string]font.Font
	failed map[string]bool

	used []font.Font
	refs map[font.Font]pdf.Reference
}

// NewResolver returns a new resolver.  If log is nil, the standard logger
// is used.
func (r *Registry) NewResolver(log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		reg:    r,
		log:    log,
		text:   standard.Helvetica(),
		loaded: make(map[string]font.Font),
		failed: make(map[string]bool),
		refs:   make(map[font.Font]pdf.Reference),
	}
}

// Text returns the font used for text annotations.
func (res *Resolver) Text() font.Font {
	res.markUsed(res.text)
	return res.text
}

// Signature returns the font for a signature in the given family.
// If the family cannot be used, a warning is logged (once per family)
// and the text font is returned instead.
func (res *Resolver) Signature(family string) font.Font {
	if res.failed[family] {
		return res.Text()
	}
	if f, ok := res.loaded[family]; ok {
		res.markUsed(f)
		return f
	}

	f, err := res.load(family)
	if err != nil {
		res.fail(family, err)
		return res.Text()
	}
	res.loaded[family] = f
	res.markUsed(f)
	return f
}

func (res *Resolver) load(family string) (*truetype.Font, error) {
	src, ok := res.reg.families[family]
	if !ok {
		return nil, ErrUnknownFamily
	}
	data, err := src.bytes()
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, err
	}
	f.SetScript(src.Script)
	return f, nil
}

func (res *Resolver) fail(family string, err error) {
	if res.failed[family] {
		return
	}
	res.failed[family] = true
	res.log.WithField("family", family).
		WithError(&EmbedError{Family: family, Err: err}).
		Warn("using Helvetica instead of signature font")
}

func (res *Resolver) markUsed(f font.Font) {
	for _, g := range res.used {
		if g == f {
			return
		}
	}
	res.used = append(res.used, f)
}

// Failed reports whether the family could not be used.
func (res *Resolver) Failed(family string) bool {
	return res.failed[family]
}

// Embed embeds all fonts returned so far into w, in the order they were
// first used.  Fonts which are already embedded are skipped.
//
// If a signature font cannot be embedded, the family is marked as failed
// and subsequent calls to [Resolver.Signature] return the text font.
// Callers must then encode the affected text again.  Errors are only
// returned if the text font cannot be embedded, or if writing to w fails.
//
// A font which fails to embed leaves no objects behind in w: fonts
// construct all their objects before writing any of them, and a failed
// write ends the whole operation.
func (res *Resolver) Embed(w *pdf.Writer) error {
	for i := 0; i < len(res.used); i++ {
		f := res.used[i]
		if _, done := res.refs[f]; done {
			continue
		}

		ref, err := f.Embed(w)
		if werr := w.Err(); werr != nil {
			return werr
		}
		if err != nil {
			if f == font.Font(res.text) {
				return &EmbedError{Family: res.text.PostScriptName(), Err: err}
			}
			for family, g := range res.loaded {
				if g == f {
					res.fail(family, err)
					delete(res.loaded, family)
				}
			}
			res.used = append(res.used[:i], res.used[i+1:]...)
			i--
			res.markUsed(res.text)
			continue
		}
		res.refs[f] = ref
	}
	return nil
}

// Ref returns the reference of the embedded font dictionary for f,
// or 0 if f has not been embedded.
func (res *Resolver) Ref(f font.Font) pdf.Reference {
	return res.refs[f]
}
