package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/golang/glog"

	"pongai/internal/dataset"
	"pongai/internal/model"
)

func main() {
	modelDir := flag.String("model-dir", "saved_pong_ai", "Directory written by pongtrain")
	modelName := flag.String("model-name", "pong_model", "Model file name prefix")
	ballX := flag.Float64("ball-x", 0.5, "Ball x position in [0,1)")
	ballY := flag.Float64("ball-y", 0.5, "Ball y position in [0,1)")
	ballVelX := flag.Float64("ball-vel-x", 0, "Ball x velocity")
	ballVelY := flag.Float64("ball-vel-y", 0, "Ball y velocity")
	paddleY := flag.Float64("paddle-y", 0.5, "Paddle y position in [0,1)")
	check := flag.Int("check", 0, "Score N freshly generated samples instead of one")
	seed := flag.Int64("seed", 0, "PRNG seed for -check (0 picks one)")

	_ = flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	params, manifest, err := model.Load(*modelDir, *modelName)
	if err != nil {
		glog.Exitf("failed to load model: %v", err)
	}
	glog.Infof("loaded run_id=%s created=%s", manifest.RunID, manifest.Created.Format(time.RFC3339))

	pr, err := model.NewPredictor(params)
	if err != nil {
		glog.Exitf("invalid model: %v", err)
	}

	if *check > 0 {
		if *seed == 0 {
			*seed = time.Now().UnixNano()
		}
		ds, err := dataset.Generate(*check, rand.New(rand.NewSource(*seed)))
		if err != nil {
			glog.Exitf("generate: %v", err)
		}
		ev, err := pr.Evaluate(ds.All())
		if err != nil {
			glog.Exitf("evaluate: %v", err)
		}
		out, err := pr.Predict(ds.Features())
		if err != nil {
			glog.Exitf("predict: %v", err)
		}
		agree := 0
		for i, v := range out {
			if model.Action(v) == ds.Label(i) {
				agree++
			}
		}
		fmt.Printf("samples=%d loss=%.4f mae=%.4f agreement=%.2f%%\n",
			ev.Rows, ev.Loss, ev.MAE, 100*float64(agree)/float64(ev.Rows))
		return
	}

	s := dataset.Sample{
		float32(*ballX), float32(*ballY), float32(*ballVelX), float32(*ballVelY), float32(*paddleY),
	}
	out, err := pr.Predict(s[:])
	if err != nil {
		glog.Exitf("predict: %v", err)
	}
	fmt.Printf("output=%.4f action=%+.0f rule=%+.0f\n", out[0], model.Action(out[0]), s.Label())
}
