package cli

import (
	"context"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/xenotune"
	"github.com/igolaizola/xenotune/pkg/cmd/analyze"
	"github.com/igolaizola/xenotune/pkg/cmd/generate"
	"github.com/igolaizola/xenotune/pkg/cmd/loop"
	"github.com/igolaizola/xenotune/pkg/cmd/migrate"
	"github.com/igolaizola/xenotune/pkg/cmd/notegen"
	"github.com/igolaizola/xenotune/pkg/cmd/setting"
	"github.com/igolaizola/xenotune/pkg/cmd/web"
	"github.com/igolaizola/xenotune/pkg/ngrok"
	"github.com/igolaizola/xenotune/pkg/sound/ffmpeg"
	"github.com/igolaizola/xenotune/pkg/sound/fluidsynth"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "XENOTUNE"

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("xenotune", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "xenotune [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newGenerateCommand(),
			newLoopCommand(),
			newServeCommand(),
			newNotegenCommand(),
			newAnalyzeCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "xenotune version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix(envPrefix),
	}
}

// generatorFlags registers the composition and rendering flags.
func generatorFlags(fs *flag.FlagSet, cfg *xenotune.Config) {
	fs.StringVar(&cfg.Modes, "modes", "config.json", "json or yaml file with the modes")
	fs.StringVar(&cfg.Sections, "sections", "", "csv or json file with section bars (fields: section,bars)")
	fs.IntVar(&cfg.BeatsPerBar, "beats-per-bar", 0, "beats per bar (0 means default)")
	fs.IntVar(&cfg.Jitter, "jitter", 0, "maximum tempo jitter in bpm (0 means default, negative disables it)")
	fs.StringVar(&cfg.Output, "output", "output", "output folder")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 means time based)")
	fs.IntVar(&cfg.Embedding, "embedding", 0, "embedding size of the melody model (0 means default)")
	fs.IntVar(&cfg.Hidden, "hidden", 0, "hidden size of the melody model (0 means default)")

	fs.BoolVar(&cfg.MIDIOnly, "midi-only", false, "skip audio rendering")
	fs.StringVar(&cfg.Soundfont, "soundfont", "", "soundfont file used by fluidsynth")
	fs.IntVar(&cfg.SampleRate, "sample-rate", fluidsynth.DefaultRate, "sample rate of rendered audio")
	fs.StringVar(&cfg.Background, "background", "", "audio file mixed under the music (optional)")
	fs.Float64Var(&cfg.MusicVolume, "music-volume", 1, "volume of the music when mixing a background")
	fs.Float64Var(&cfg.BackgroundVolume, "background-volume", 0.5, "volume of the background when mixing")
	fs.DurationVar(&cfg.FadeOut, "fade-out", 0, "fade out duration at the end of the track (0 disables it)")
	fs.BoolVar(&cfg.KeepWav, "keep-wav", false, "keep the intermediate wav file")
	fs.StringVar(&fluidsynth.BinPath, "fluidsynth-bin", fluidsynth.BinPath, "fluidsynth binary")
	fs.StringVar(&ffmpeg.BinPath, "ffmpeg-bin", ffmpeg.BinPath, "ffmpeg binary")
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "xenotune.db", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "migrate the database",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "xenotune.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Key, "key", "", "setting key (jwt_secret)")
	fs.StringVar(&cfg.Value, "value", "", "value to set, empty prints the current value")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "get or set a server setting",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return setting.Run(ctx, cfg)
		},
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &generate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type to record generations (sqlite, mysql, postgres), empty disables it")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type to upload generations (local, s3), empty disables it")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "root[@base-url] for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.FSEndpoint, "fs-endpoint", "", "custom s3 endpoint (optional)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "timeout for the process (0 means no timeout)")
	fs.IntVar(&cfg.Concurrency, "concurrency", 1, "number of concurrent processes")
	fs.IntVar(&cfg.Limit, "limit", 1, "limit the number iterations (0 means no limit)")
	fs.DurationVar(&cfg.WaitMin, "wait-min", 0, "minimum wait time between generations")
	fs.DurationVar(&cfg.WaitMax, "wait-max", 0, "maximum wait time between generations")
	fs.StringVar(&cfg.Modes, "mode", "", "modes to generate (comma separated), empty means all")
	fs.StringVar(&cfg.UserID, "user", "", "user id of the uploads")
	generatorFlags(fs, &cfg.Generator)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "generate soundscapes",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return generate.Run(ctx, cfg)
		},
	}
}

func newLoopCommand() *ffcli.Command {
	cmd := "loop"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &loop.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Mode, "mode", "focus", "mode to play")
	fs.DurationVar(&cfg.Wait, "wait", 5*time.Second, "wait time after a failed generation")
	fs.Float64Var(&cfg.Volume, "volume", 1, "playback volume (0 to 1)")
	fs.StringVar(&cfg.Ambience, "ambience", "", "audio file looped during playback (optional)")
	fs.Float64Var(&cfg.AmbienceVolume, "ambience-volume", 0.3, "ambience volume (0 to 1)")
	generatorFlags(fs, &cfg.Generator)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "generate and play soundscapes forever",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return loop.Run(ctx, cfg)
		},
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "xenotune.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "local", "fs type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "files", "root[@base-url] for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.FSEndpoint, "fs-endpoint", "", "custom s3 endpoint (optional)")
	fs.StringVar(&cfg.Addr, "addr", ":8000", "address to listen on")
	fs.StringVar(&cfg.Files, "files", "", "local folder served under /files/ (optional)")
	fs.StringVar(&cfg.Secret, "secret", "", "token signing secret (empty means stored random secret)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 30*24*time.Hour, "token lifetime")
	fs.BoolVar(&cfg.Ngrok, "ngrok", false, "expose the server with an ngrok tunnel")
	fs.StringVar(&ngrok.BinPath, "ngrok-bin", ngrok.BinPath, "ngrok binary")
	generatorFlags(fs, &cfg.Generator)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "serve the soundscape api",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

func newNotegenCommand() *ffcli.Command {
	cmd := "notegen"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &notegen.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Input, "input", "config.json", "json or yaml file with the modes")
	fs.StringVar(&cfg.Output, "output", "", "output file (empty means overwrite the input)")
	fs.IntVar(&cfg.Length, "length", 8, "number of predicted notes per instrument")
	fs.IntVar(&cfg.Epochs, "epochs", 0, "training epochs (0 means default)")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 means time based)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "rewrite instrument notes with the melody model",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return notegen.Run(ctx, cfg)
		},
	}
}

func newAnalyzeCommand() *ffcli.Command {
	cmd := "analyze"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &analyze.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Input, "input", "", "input mp3 file, url or uploaded object name")
	fs.StringVar(&cfg.Output, "output", "", "output folder for the plots (optional)")
	fs.BoolVar(&cfg.Tempo, "tempo", false, "estimate the tempo with aubio")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type to download the input from (local, s3), empty reads it directly")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "root[@base-url] for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.FSEndpoint, "fs-endpoint", "", "custom s3 endpoint (optional)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("xenotune %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "analyze a rendered soundscape",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return analyze.Run(ctx, cfg)
		},
	}
}
