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

// Pdf-flatten draws annotations into a PDF document.
//
// The annotations are either read from a JSON file (option -a), or taken
// from the store configured in the configuration file.  The JSON file has
// the form
//
//	{"annotations": [...], "signatures": [...]}
//
// using the same field names as the database tables.
//
// The output is written to stdout, unless a file name is given with -o.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/opensaas-skeletons/skeleton-office-tools/annotation"
	"github.com/opensaas-skeletons/skeleton-office-tools/config"
	"github.com/opensaas-skeletons/skeleton-office-tools/fileio"
	"github.com/opensaas-skeletons/skeleton-office-tools/flatten"
	"github.com/opensaas-skeletons/skeleton-office-tools/session"
	"github.com/opensaas-skeletons/skeleton-office-tools/store"
	"github.com/opensaas-skeletons/skeleton-office-tools/tools/internal/buildinfo"
	"github.com/opensaas-skeletons/skeleton-office-tools/tools/internal/profile"

	_ "github.com/opensaas-skeletons/skeleton-office-tools/store/memstore"
	_ "github.com/opensaas-skeletons/skeleton-office-tools/store/mysqlstore"
	_ "github.com/opensaas-skeletons/skeleton-office-tools/store/pgstore"
	_ "github.com/opensaas-skeletons/skeleton-office-tools/store/redisstore"
)

type options struct {
	out        string
	anns       string
	conf       string
	verbose    bool
	cpuprofile string
	memprofile string
}

func main() {
	opt := &options{}
	flag.StringVar(&opt.out, "o", "", "output file name (default: stdout)")
	flag.StringVar(&opt.anns, "a", "", "read annotations from this JSON file")
	flag.StringVar(&opt.conf, "config", "", "configuration file")
	flag.BoolVar(&opt.verbose, "v", false, "verbose output")
	flag.StringVar(&opt.cpuprofile, "cpuprofile", "", "write cpu profile to file")
	flag.StringVar(&opt.memprofile, "memprofile", "", "write memory profile to file")
	version := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Version("pdf-flatten"))
		return
	}

	err := run(opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pdf-flatten:", err)
		os.Exit(1)
	}
}

func run(opt *options) error {
	input, ok := fileio.OpenedWith(flag.Args())
	if !ok {
		return errors.New("no input file given")
	}
	if opt.out == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("refusing to write PDF data to a terminal, use -o")
	}

	conf := config.Default()
	if opt.conf != "" {
		var err error
		conf, err = config.Load(opt.conf)
		if err != nil {
			return err
		}
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(conf.Level())
	if opt.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	stop, err := profile.Start(opt.cpuprofile, opt.memprofile, log)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	engine := flatten.New(conf.Registry(), log)
	engine.Limits = conf.AnnotationLimits()

	var source []byte
	var anns []annotation.Annotation
	var sigs []annotation.SignatureRecord
	if opt.anns != "" {
		source, err = fileio.ReadFile(input)
		if err != nil {
			return err
		}
		anns, sigs, err = readAnnotations(opt.anns)
		if err != nil {
			return err
		}
	} else {
		client, err := store.New(ctx, &conf.Store)
		if err != nil {
			return err
		}
		defer client.Close()

		s := session.New(client, engine, log)
		err = s.Open(ctx, input)
		if err != nil {
			return err
		}
		if opt.out != "" {
			_, err = s.Save(ctx, opt.out)
			return err
		}
		source, err = fileio.ReadFile(input)
		if err != nil {
			return err
		}
		anns = s.Annotations.All()
		sigs = s.Signatures()
	}

	res, err := engine.Flatten(ctx, source, anns, sigs)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"pages":     res.PagesTouched,
		"drawn":     res.Drawn,
		"skipped":   len(res.Skipped),
		"fallbacks": res.Fallbacks,
	}).Debug("flattened")

	if opt.out == "" {
		_, err = os.Stdout.Write(res.Data)
		return err
	}
	return fileio.WriteFileAtomic(opt.out, res.Data)
}

// annotationFile is the format of the file given with -a.
type annotationFile struct {
	Annotations []store.AnnotationRow `json:"annotations"`
	Signatures  []store.SignatureRow  `json:"signatures"`
}

func readAnnotations(fname string) ([]annotation.Annotation, []annotation.SignatureRecord, error) {
	data, err := fileio.ReadFile(fname)
	if err != nil {
		return nil, nil, err
	}
	var in annotationFile
	err = json.Unmarshal(data, &in)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fname, err)
	}
	anns, err := store.AnnotationsFromRows(in.Annotations)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fname, err)
	}
	sigs, err := store.SignaturesFromRows(in.Signatures)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fname, err)
	}
	return anns, sigs, nil
}
