// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	_ "github.com/bhuisgen/trellis/pkg/modules/store/backends/empty"
	_ "github.com/bhuisgen/trellis/pkg/modules/store/backends/remote"
	_ "github.com/bhuisgen/trellis/pkg/modules/store/backends/samples"
	_ "github.com/bhuisgen/trellis/pkg/modules/store/backends/sqlite"
)
