// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every Config knob onto flagSet and binds it into
// viper's global config, matching the teacher's cfg.BindFlags(flagSet)
// called from cmd/root.go's init. A config-file value for the same key
// (see cmd/root.go's initConfig) overrides the flag's default but not an
// explicitly-set flag, viper's usual precedence.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("bucket", "", "Backing object-store bucket name.")
	if err := viper.BindPFlag("bucket", flagSet.Lookup("bucket")); err != nil {
		return err
	}

	flagSet.String("mount-point", "", "Local path to mount the filesystem at.")
	if err := viper.BindPFlag("mount-point", flagSet.Lookup("mount-point")); err != nil {
		return err
	}

	flagSet.String("coordinator-addr", "", "Lease coordinator net/rpc address.")
	if err := viper.BindPFlag("coordinator-addr", flagSet.Lookup("coordinator-addr")); err != nil {
		return err
	}

	flagSet.String("self-addr", "", "This client's own net/rpc address.")
	if err := viper.BindPFlag("self-addr", flagSet.Lookup("self-addr")); err != nil {
		return err
	}

	flagSet.String("init", "", `Shorthand for coordinator-addr/self-addr: "<coordinator_addr>,<self_rpc_addr>".`)
	if err := viper.BindPFlag("init", flagSet.Lookup("init")); err != nil {
		return err
	}

	flagSet.Int64("object-size", DefaultObjectSize, "Backing object size, must be a power of two.")
	if err := viper.BindPFlag("object-size", flagSet.Lookup("object-size")); err != nil {
		return err
	}

	flagSet.Duration("lease-period", DefaultLeasePeriod, "Lease period; validated only, leases use the fixed 10s period.")
	if err := viper.BindPFlag("lease-period", flagSet.Lookup("lease-period")); err != nil {
		return err
	}

	flagSet.Uint32("uid", 0, "Owning uid of the root inode written at first mount.")
	if err := viper.BindPFlag("uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.Uint32("gid", 0, "Owning gid of the root inode written at first mount.")
	if err := viper.BindPFlag("gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	flagSet.String("file-perms", "0644", "File permission bits, octal; validated only, not applied to any inode.")
	if err := viper.BindPFlag("file-perms", flagSet.Lookup("file-perms")); err != nil {
		return err
	}

	flagSet.String("dir-perms", "0755", "Permission bits of the root directory written at first mount, octal.")
	if err := viper.BindPFlag("dir-perms", flagSet.Lookup("dir-perms")); err != nil {
		return err
	}

	flagSet.String("log-severity", "INFO", "Log severity (TRACE|DEBUG|INFO|WARNING|ERROR); not applied, logs are written at INFO.")
	if err := viper.BindPFlag("log-severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.String("log-format", "text", "Log record format (text|json); validated only, logs are written as text.")
	return viper.BindPFlag("log-format", flagSet.Lookup("log-format"))
}

// rawConfig mirrors Config field-for-field, decoded straight from viper's
// merged flag/config-file state via DecodeHook's mapstructure hooks
// (Octal's UnmarshalText for file-perms/dir-perms, StringToTimeDurationHookFunc
// for lease-period).
type rawConfig struct {
	Bucket          string        `mapstructure:"bucket"`
	MountPoint      string        `mapstructure:"mount-point"`
	CoordinatorAddr string        `mapstructure:"coordinator-addr"`
	SelfAddr        string        `mapstructure:"self-addr"`
	Init            string        `mapstructure:"init"`
	ObjectSize      int64         `mapstructure:"object-size"`
	LeasePeriod     time.Duration `mapstructure:"lease-period"`
	Uid             uint32        `mapstructure:"uid"`
	Gid             uint32        `mapstructure:"gid"`
	FilePerms       Octal         `mapstructure:"file-perms"`
	DirPerms        Octal         `mapstructure:"dir-perms"`
	LogSeverity     string        `mapstructure:"log-severity"`
	LogFormat       string        `mapstructure:"log-format"`
}

// Resolve decodes viper's current flag/config-file state into a Config for
// the given positional bucket/mount-point arguments, applying the --init
// shorthand when set. Matches the teacher's viper.Unmarshal(&MountConfig)
// call in cmd/root.go's initConfig, but scoped to a function so tests can
// exercise it without cobra's global state.
func Resolve(bucket, mountPoint string) (Config, error) {
	var raw rawConfig
	if err := viper.Unmarshal(&raw, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, err
	}

	c := GetDefaultConfig()
	c.Bucket = bucket
	c.MountPoint = mountPoint
	c.CoordinatorAddr = raw.CoordinatorAddr
	c.SelfAddr = raw.SelfAddr
	if raw.ObjectSize != 0 {
		c.ObjectSize = raw.ObjectSize
	}
	if raw.LeasePeriod != 0 {
		c.LeasePeriod = raw.LeasePeriod
	}
	c.Uid = raw.Uid
	c.Gid = raw.Gid
	if raw.FilePerms != 0 {
		c.FilePerms = raw.FilePerms
	}
	if raw.DirPerms != 0 {
		c.DirPerms = raw.DirPerms
	}
	if raw.LogSeverity != "" {
		c.LogSeverity = raw.LogSeverity
	}
	if raw.LogFormat != "" {
		c.LogFormat = raw.LogFormat
	}

	if raw.Init != "" {
		init, err := ParseInitString(raw.Init)
		if err != nil {
			return Config{}, err
		}
		c.CoordinatorAddr = init.CoordinatorAddr
		c.SelfAddr = init.SelfRPCAddr
	}

	return c, nil
}
