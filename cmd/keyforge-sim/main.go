// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Keyforge-sim is a software simulation of a keyforge device: it boots a
// broker over an in-process or filesystem-backed store, attaches one demo
// client, ticks the dispatch loop from the stub's syscall hook on every
// request, and serves a gzip-compressed diagnostic dump of the store's
// contents over HTTP.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"

	"keyforge.io/auth"
	"keyforge.io/backend"
	"keyforge.io/broker"
	"keyforge.io/client"
	"keyforge.io/config"
	"keyforge.io/keyforge"
	"keyforge.io/log"
	"keyforge.io/rng"
	"keyforge.io/service"
	"keyforge.io/store"
	"keyforge.io/store/filesystem"
	"keyforge.io/store/volatile"
	"keyforge.io/stub"
)

var (
	configPath = flag.String("config", "", "path to a device configuration YAML file; empty runs with compiled-in defaults")
	httpAddr   = flag.String("http", "localhost:8080", "address the diagnostic HTTP frontend listens on")
)

type hwEntropy struct{}

func (hwEntropy) Read(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

// consoleUI is a stand-in for real device UI hardware: it logs status
// transitions and reports presence unconditionally, since a simulated
// device has no button to hold.
type consoleUI struct {
	boot time.Time
}

func (consoleUI) SetStatus(s keyforge.UIStatus) { log.Debug.Printf("ui: status -> %d", s) }
func (consoleUI) CheckPresence() keyforge.Presence {
	return keyforge.PresenceVerifiedUser
}
func (consoleUI) Wink(ms uint32) { log.Info.Printf("ui: wink for %dms", ms) }
func (u consoleUI) Uptime() uint64 {
	return uint64(time.Since(u.boot).Milliseconds())
}
func (consoleUI) Reboot(to keyforge.RebootTo) {
	log.Info.Printf("ui: reboot requested (mode %d); exiting simulation", to)
	os.Exit(0)
}

type platform struct {
	ui consoleUI
}

func (platform) Entropy() keyforge.Entropy        { return hwEntropy{} }
func (p platform) UI() keyforge.UserInterface      { return p.ui }

func openStore(d *config.Device) (store.Store, error) {
	if d.StoreRoot == "" {
		log.Info.Printf("store_root not set: running on volatile (RAM-only) storage")
		return volatile.New(), nil
	}
	return filesystem.New(d.StoreRoot)
}

func dumpStore(st store.Store) string {
	var b strings.Builder
	for _, loc := range []keyforge.Location{keyforge.Internal, keyforge.External, keyforge.Volatile} {
		fmt.Fprintf(&b, "%s:\n", loc)
		names, err := st.List(loc, "")
		if err != nil {
			fmt.Fprintf(&b, "  (error: %v)\n", err)
			continue
		}
		sort.Strings(names)
		for _, name := range names {
			meta, err := st.Metadata(loc, name)
			if err != nil {
				fmt.Fprintf(&b, "  %s (error: %v)\n", name, err)
				continue
			}
			kind := "file"
			if meta.IsDirectory {
				kind = "dir"
			}
			fmt.Fprintf(&b, "  %s\t%s\t%d bytes\n", name, kind, meta.Size)
		}
	}
	return b.String()
}

func main() {
	flag.Parse()

	d := &config.Device{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config.Load: %v", err)
		}
		d = loaded
	}
	if d.PinRetryBudget != 0 {
		auth.Configure(d.PinRetryBudget)
	}

	st, err := openStore(d)
	if err != nil {
		log.Fatalf("openStore: %v", err)
	}

	boot := time.Now()
	plat := platform{ui: consoleUI{boot: boot}}

	root, err := rng.BootFromStore(st, plat.Entropy())
	if err != nil {
		log.Fatalf("rng.BootFromStore: %v", err)
	}

	res := &service.Resources{Root: root, Platform: plat}
	backend.RegisterSoftware(service.Software{})
	for _, cb := range d.CustomBackends {
		log.Info.Printf("config names custom backend %d (%s) but no implementation is compiled in; it will defer every request", cb.ID, cb.Name)
	}

	// The broker is single-threaded by design (spec §5: "Send but not
	// concurrently callable"), so every Tick in this simulation runs on
	// the same goroutine — triggered synchronously from the stub's
	// syscall hook rather than from an independent ticking goroutine.
	b := broker.New(res)
	demo := client.New("demo", st)
	slot := b.Attach(demo)
	s := stub.New(slot, func() { b.Tick() })
	if err := s.WriteFile(keyforge.Internal, "hello", []byte("keyforge-sim is alive"), ""); err != nil {
		log.Error.Printf("demo WriteFile failed: %v", err)
	} else if data, err := s.ReadFile(keyforge.Internal, "hello"); err != nil {
		log.Error.Printf("demo ReadFile failed: %v", err)
	} else {
		log.Info.Printf("demo round-trip: %s", data)
	}

	mux := http.NewServeMux()
	mux.Handle("/debug", gziphandler.GzipHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, dumpStore(st))
	})))

	log.Info.Printf("keyforge-sim listening on %s", *httpAddr)
	log.Fatal(http.ListenAndServe(*httpAddr, mux))
}
