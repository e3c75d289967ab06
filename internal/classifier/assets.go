package classifier

import (
	"embed"
	"fmt"
	"io"
	"os"

	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

//go:embed assets/*.json
var assetFS embed.FS

// HeuristicModel selects HeuristicClassifier in place of a tree model file.
const HeuristicModel = "heuristic"

var defaultScorerAssets = map[models.ScoreType]string{
	models.ScoreRedZone:     "assets/scorer_redzone.json",
	models.ScoreRepeat:      "assets/scorer_repeat.json",
	models.ScoreLoanPaidOff: "assets/scorer_loan_paid_off.json",
	models.ScoreIsBad:       "assets/scorer_is_bad.json",
}

// ModelPaths points at model files on disk. Empty entries use the bundled
// defaults.
type ModelPaths struct {
	ClusterModel string
	Refiner      string
	Scorers      map[models.ScoreType]string
}

// Models is the full set of pretrained capabilities used by the pipeline.
type Models struct {
	Cluster Classifier
	Scorers map[models.ScoreType]Scorer
	Version string
}

// LoadModels loads every model once at startup.
func LoadModels(paths ModelPaths) (*Models, error) {
	version := HeuristicModel
	var base Classifier = HeuristicClassifier{}
	if paths.ClusterModel != HeuristicModel {
		var ens *Ensemble
		err := withFile(paths.ClusterModel, "assets/cluster_gbt.json", func(r io.Reader) error {
			var err error
			ens, err = LoadEnsemble(r, features.FeatureNames)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("cluster model: %w", err)
		}
		gbt, err := NewGBTClassifier(ens)
		if err != nil {
			return nil, err
		}
		base, version = gbt, gbt.Version()
	}

	var refiner *Refiner
	err := withFile(paths.Refiner, "assets/refiner.json", func(r io.Reader) error {
		var err error
		refiner, err = LoadRefiner(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refiner: %w", err)
	}

	m := &Models{
		Cluster: NewStackedClassifier(base, refiner),
		Scorers: make(map[models.ScoreType]Scorer, len(models.AllScoreTypes)),
		Version: version,
	}
	for _, st := range models.AllScoreTypes {
		var s Scorer
		err := withFile(paths.Scorers[st], defaultScorerAssets[st], func(r io.Reader) error {
			var err error
			s, err = LoadScorer(r, features.ScoreFeatureNames)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%s scorer: %w", st, err)
		}
		m.Scorers[st] = s
	}
	return m, nil
}

func withFile(path, asset string, fn func(io.Reader) error) error {
	var (
		f   io.ReadCloser
		err error
	)
	if path != "" {
		f, err = os.Open(path)
	} else {
		f, err = assetFS.Open(asset)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
