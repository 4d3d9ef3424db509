package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/viper"
)

// flag
var (
	hf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	//InitLog 初始化日志
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	// then wrap the log output with it
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.DebugLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `mbtiler version: mbtiler/v0.1.0
Usage: mbtiler [-h] [-c filename] command [args]

Commands:
  overzoom  <input.mbtiles> <output.mbtiles> <zoom>  extend tiles beyond the stored maxzoom
  subdivide <config.json> <input.mbtiles> <outdir>   split an archive into partitions
  stats     <input.mbtiles>                          per zoom blob size statistics
  convert   <tiledir> <output.mbtiles>               tile directory to mbtiles
`)
	flag.PrintDefaults()
}

// initConf 初始化配置
func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "MapCloud MBTiler")
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.savepipe", 8)
	viper.SetDefault("output.scheme", SchemeTMS)
	viper.SetDefault("overzoom.buffer", 0)
	viper.SetDefault("overzoom.compression", GZIP)
}

//runOverzoom overzoom子命令入口
func runOverzoom(input, output string, target maptile.Zoom) error {
	scheme := viper.GetString("output.scheme")
	src, err := OpenMBTiles(input, scheme)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := CreateMBTiles(output, scheme)
	if err != nil {
		return err
	}
	defer dst.Close()

	oz, err := NewOverzoomer(src)
	if err != nil {
		return err
	}
	if int(target) <= oz.Maxzoom {
		return fmt.Errorf("input archive is already at or above target zoom %d", target)
	}

	// maxzoom与目标之间的每个级别都合成
	var zooms []maptile.Zoom
	for z := oz.Maxzoom + 1; z <= int(target); z++ {
		zooms = append(zooms, maptile.Zoom(z))
	}
	task := NewTask(src, dst, oz, zooms)
	if bound := viper.GetString("overzoom.bound"); bound != "" {
		task.SetBound(loadCollection(bound))
	}

	log.Infof("extending tiles from z%d to z%d, saving to %s ~", oz.Maxzoom, target, output)
	summary, err := task.Run()
	if err != nil {
		return err
	}
	log.Infof("tiles produced: %d, empty: %d, failed: %d ~", summary.Produced, summary.Empty, summary.Failed)
	for _, f := range summary.Failures {
		log.Errorf("tile %v failed ~ %s", f.T, f.Err)
	}
	return nil
}

func main() {
	flag.Parse()
	if hf || flag.NArg() == 0 {
		flag.Usage()
		return
	}
	initConf(cf)

	start := time.Now()
	args := flag.Args()
	var err error
	switch args[0] {
	case "overzoom":
		if len(args) != 4 {
			flag.Usage()
			os.Exit(1)
		}
		zoom, cerr := strconv.Atoi(args[3])
		if cerr != nil || zoom < ZoomMin || zoom > ZoomMax {
			log.Fatalf("invalid target zoom %q", args[3])
		}
		err = runOverzoom(args[1], args[2], maptile.Zoom(zoom))
	case "subdivide":
		if len(args) != 4 {
			flag.Usage()
			os.Exit(1)
		}
		err = runSubdivide(args[1], args[2], args[3])
	case "stats":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(1)
		}
		err = runStats(args[1])
	case "convert":
		if len(args) != 3 {
			flag.Usage()
			os.Exit(1)
		}
		err = runConvert(args[1], args[2])
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
	secs := time.Since(start).Seconds()
	log.Printf("\n%.3fs finished...", secs)
}
