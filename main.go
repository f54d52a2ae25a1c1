package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"ecudump/adapter"
	"ecudump/config"
	"ecudump/facade"
	"ecudump/logging"
	"ecudump/memoryread"
	"ecudump/utils"
)

func main() {
	configPath := flag.String("config", "", "path to an ecudump.ini config file")
	ecuFlag := flag.String("ecu", "", "ECU id to read from, e.g. UDS_0x7E0 (default: first discovered)")
	startFlag := flag.Uint64("start", 0, "start address of the memory range to read")
	endFlag := flag.Uint64("end", 0x10000, "end address (exclusive) of the memory range to read")
	blockSizeFlag := flag.Uint("block-size", 0, "bytes per ReadMemoryByAddress request (0: use config default)")
	outFlag := flag.String("out", "dump.bin", "output path for the BIN dump")
	verboseFlag := flag.Bool("verbose", false, "enable debug logging")
	listEcusFlag := flag.Bool("scan-only", false, "scan for ECUs, print them, and exit without reading")
	scanAdaptersFlag := flag.Bool("scan-adapters", false, "list candidate serial adapters and exit")
	sendFrameFlag := flag.String("send-frame", "", "send one raw CAN frame as hex bytes (e.g. 0201000000000000) to -frame-id and exit")
	frameIDFlag := flag.Uint("frame-id", 0x7E0, "arbitration id for -send-frame")
	flag.Parse()

	level := logrus.InfoLevel
	if *verboseFlag {
		level = logrus.DebugLevel
	}
	log := logging.New(level)

	if *scanAdaptersFlag {
		runAdapterScan(log)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("loading config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Infof("received shutdown signal, canceling...")
		cancel()
	}()

	e := facade.New(cfg, log)
	defer e.Disconnect()

	if err := e.InitCommunication(ctx); err != nil {
		log.Errorf("init_communication: %v", err)
		os.Exit(1)
	}

	if *sendFrameFlag != "" {
		data, err := utils.ParseFrameData(*sendFrameFlag)
		if err != nil {
			log.Errorf("send-frame: %v", err)
			os.Exit(1)
		}
		if err := e.SendRawFrame(ctx, uint16(*frameIDFlag), data); err != nil {
			log.Errorf("send-frame: %v", err)
			os.Exit(1)
		}
		log.Infof("sent % X to 0x%03X", data, *frameIDFlag)
		return
	}

	log.Infof("scanning for ECUs on %s...", cfg.BusInterface)
	ecus, err := e.ScanECUs(ctx)
	if err != nil {
		log.Errorf("scan_ecus: %v", err)
		os.Exit(1)
	}
	if len(ecus) == 0 {
		log.Errorf("no ECUs responded")
		os.Exit(1)
	}
	for _, ecu := range ecus {
		log.Infof("found %s at 0x%03X (%s) vin=%q manufacturer=%q", ecu.ID, ecu.Address, ecu.Protocol, ecu.VIN, ecu.Manufacturer)
	}
	if *listEcusFlag {
		return
	}

	target := *ecuFlag
	if target == "" {
		target = ecus[0].ID
	}
	if err := e.SelectECU(target); err != nil {
		log.Errorf("select_ecu: %v", err)
		os.Exit(1)
	}

	start := uint32(*startFlag)
	end := uint32(*endFlag)
	blockSize := uint32(*blockSizeFlag)

	progress := mpb.NewWithContext(ctx, mpb.WithWidth(64))
	bar := progress.AddBar(int64(end-start),
		mpb.PrependDecorators(
			decor.Name("reading: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)
	go trackBar(ctx, bar, e, end-start)

	if err := e.ReadBin(ctx, start, end, blockSize); err != nil {
		log.Errorf("read_bin: %v", err)
		os.Exit(1)
	}
	progress.Wait()

	if err := e.SaveBin(*outFlag); err != nil {
		log.Errorf("save_bin: %v", err)
		os.Exit(1)
	}
	log.Infof("wrote %s", *outFlag)
}

// trackBar polls the facade's progress every tick and advances bar to
// match, stopping once the read reaches a terminal state.
func trackBar(ctx context.Context, bar *mpb.Bar, e *facade.Engine, total uint32) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var last uint32
	for {
		p := e.Progress()
		if p.BytesRead > last {
			bar.IncrBy(int(p.BytesRead - last))
			last = p.BytesRead
		}
		if p.Status == memoryread.StatusComplete || p.Status == memoryread.StatusError {
			if !bar.Completed() {
				bar.SetCurrent(int64(total))
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runAdapterScan(log *logging.Logger) {
	candidates, err := adapter.Scan()
	if err != nil {
		log.Errorf("scanning adapters: %v", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		fmt.Println("no candidate adapters found")
		return
	}
	for i := range candidates {
		c := &candidates[i]
		if err := adapter.Probe(c); err != nil {
			log.Debugf("probing %s: %v", c.Port, err)
		}
		status := "unconfirmed"
		if c.Connected {
			status = "confirmed ELM327"
		}
		fmt.Printf("%s  vid=%s pid=%s  %s\n", c.Port, c.VendorID, c.ProductID, status)
	}
}
