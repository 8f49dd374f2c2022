package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/storage"
)

// Storage keys.
const (
	machineIDKey        = "telemetry.machineId"
	firstSessionDateKey = "telemetry.firstSessionDate"
	lastSessionDateKey  = "telemetry.lastSessionDate"
	currentSessionKey   = "telemetry.currentSessionDate"
)

// DefaultMachineID is reported when the machine id must not be sent.
const DefaultMachineID = "someValue.machineId"

// Common property names.
const (
	MachineIDProperty        = "common.machineId"
	SessionIDProperty        = "sessionID"
	CommitHashProperty       = "commitHash"
	VersionProperty          = "version"
	ProductProperty          = "common.product"
	RemoteAuthorityProperty  = "common.remoteAuthority"
	FirstSessionDateProperty = "common.firstSessionDate"
	LastSessionDateProperty  = "common.lastSessionDate"
	IsNewSessionProperty     = "common.isNewSession"
	TimestampProperty        = "timestamp"
	SessionTimeProperty      = "common.timesincesessionstart"
	SequenceProperty         = "common.sequence"
)

// Product identifies the running build.
type Product struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	Commit          string `yaml:"commit"`
	RemoteAuthority string `yaml:"remote-authority"`
	RemoveMachineID bool   `yaml:"remove-machine-id"`
}

// sessionState is resolved once per process.
type sessionState struct {
	info            telemetry.Info
	lastSessionDate string
	isNewSession    bool
}

// resolveSession reads and updates the installation identifiers in store.
// Storage failures are logged; identifiers are still produced for this process.
func resolveSession(store storage.Storage, product Product, now time.Time, logger *log.Logger) sessionState {
	var state sessionState
	state.info.SessionID = uuid.New().String() + strconv.FormatInt(now.UnixMilli(), 10)

	persist := func(key, value string) {
		if store == nil {
			return
		}
		if err := store.Store(key, value); err != nil {
			logger.WithError(err).Warnf("resolveSession(): unable to persist %s", key)
		}
	}
	get := func(key string) (string, bool) {
		if store == nil {
			return "", false
		}
		return store.Get(key)
	}

	switch {
	case product.RemoveMachineID:
		state.info.InstanceID = DefaultMachineID
		state.info.IsUsingDefaultID = true
	default:
		id, ok := get(machineIDKey)
		if !ok || id == "" {
			id = uuid.New().String()
			persist(machineIDKey, id)
		}
		state.info.InstanceID = id
	}

	today := now.UTC().Format(time.RFC1123)
	first, ok := get(firstSessionDateKey)
	if !ok || first == "" {
		first = today
		persist(firstSessionDateKey, first)
	}
	state.info.FirstSessionDate = first

	// The previous process' session date becomes this session's last date.
	if previous, ok := get(currentSessionKey); ok && previous != "" {
		state.lastSessionDate = previous
		persist(lastSessionDateKey, previous)
	}
	persist(currentSessionKey, today)
	state.isNewSession = state.lastSessionDate == ""
	return state
}

// cleanRemoteAuthority only reports the kind of remote, never its host.
func cleanRemoteAuthority(authority string) string {
	if authority == "" {
		return "none"
	}
	if i := strings.Index(authority, "+"); i > 0 {
		return authority[:i]
	}
	return "other"
}

// resolveCommonProperties builds the properties attached to every event.
func resolveCommonProperties(product Product, state sessionState, extra map[string]string) map[string]string {
	props := map[string]string{
		MachineIDProperty:        state.info.InstanceID,
		SessionIDProperty:        state.info.SessionID,
		CommitHashProperty:       product.Commit,
		VersionProperty:          product.Version,
		ProductProperty:          product.Name,
		RemoteAuthorityProperty:  cleanRemoteAuthority(product.RemoteAuthority),
		FirstSessionDateProperty: state.info.FirstSessionDate,
		LastSessionDateProperty:  state.lastSessionDate,
		IsNewSessionProperty:     strconv.FormatBool(state.isNewSession),
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// LoadInfo returns the persisted identifiers without starting a session.
// SessionID is empty because no session exists.
func LoadInfo(store storage.Storage, product Product) telemetry.Info {
	if product.RemoveMachineID {
		info := telemetry.Info{InstanceID: DefaultMachineID, IsUsingDefaultID: true}
		info.FirstSessionDate, _ = store.Get(firstSessionDateKey)
		return info
	}
	var info telemetry.Info
	info.InstanceID, _ = store.Get(machineIDKey)
	info.FirstSessionDate, _ = store.Get(firstSessionDateKey)
	return info
}
