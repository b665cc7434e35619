package model

import (
	"fmt"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
)

// ForestFactory builds forests with fixed hyperparameters.
func ForestFactory(p config.ForestParams) Factory {
	return Factory{
		Family: FamilyForest,
		Params: p,
		New:    func() (Classifier, error) { return NewForest(p), nil },
	}
}

// BoostFactory builds boosters with fixed hyperparameters.
func BoostFactory(p config.BoostParams) Factory {
	return Factory{
		Family: FamilyBoost,
		Params: p,
		New:    func() (Classifier, error) { return NewBoost(p), nil },
	}
}

// RemoteFactory builds remote classifiers that share one transport when
// inv is non-nil, and dial Params.Addr otherwise.
func RemoteFactory(p config.RemoteParams, inv invoker) Factory {
	return Factory{
		Family: FamilyRemote,
		Params: p,
		New: func() (Classifier, error) {
			if inv != nil {
				return NewRemoteWithInvoker(p, inv), nil
			}
			return NewRemote(p), nil
		},
	}
}

// FactoryFor parses raw options for the named family.
func FactoryFor(family string, raw config.Raw) (Factory, error) {
	switch family {
	case FamilyForest:
		p, err := config.ParseForest(raw)
		if err != nil {
			return Factory{}, err
		}
		return ForestFactory(p), nil
	case FamilyBoost:
		p, err := config.ParseBoost(raw)
		if err != nil {
			return Factory{}, err
		}
		return BoostFactory(p), nil
	case FamilyRemote:
		p, err := config.ParseRemote(raw)
		if err != nil {
			return Factory{}, err
		}
		return RemoteFactory(p, nil), nil
	default:
		return Factory{}, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
}
