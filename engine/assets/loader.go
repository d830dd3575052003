package assets

import "github.com/spaghettifunk/okapi/engine/assets/loaders"

type Loader interface {
	Load(path string, params interface{}) (*loaders.Resource, error) // `interface{}` lets each loader take its own parameters
	Unload(*loaders.Resource) error
}
