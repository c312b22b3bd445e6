package gpu

// bilateralWGSL is the compute kernel. It mirrors the CPU filters: the range
// term uses the BT.709 luminance difference, out-of-bounds neighbours are
// skipped and the centre weight is exactly 1.
//
// Buffers hold interleaved RGB float32 samples.
const bilateralWGSL = `
struct Params {
    width: u32,
    height: u32,
    spatial_sigma: f32,
    range_sigma: f32,
}

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

fn luminance(i: u32) -> f32 {
    return 0.2126 * src[i * 3u] + 0.7152 * src[i * 3u + 1u] + 0.0722 * src[i * 3u + 2u];
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.width || gid.y >= params.height) {
        return;
    }

    let w = i32(params.width);
    let h = i32(params.height);
    let x = i32(gid.x);
    let y = i32(gid.y);
    let radius = i32(ceil(3.0 * params.spatial_sigma));
    let inv_spatial = 1.0 / max(2.0 * params.spatial_sigma * params.spatial_sigma, 1.0e-30);
    let inv_range = 1.0 / max(2.0 * params.range_sigma * params.range_sigma, 1.0e-30);

    let center = u32(y * w + x);
    let lc = luminance(center);

    var sum = vec3<f32>(0.0, 0.0, 0.0);
    var sum_w = 0.0;

    for (var dy = -radius; dy <= radius; dy = dy + 1) {
        let yy = y + dy;
        if (yy < 0 || yy >= h) {
            continue;
        }
        for (var dx = -radius; dx <= radius; dx = dx + 1) {
            let xx = x + dx;
            if (xx < 0 || xx >= w) {
                continue;
            }
            let q = u32(yy * w + xx);
            let d2 = f32(dx * dx + dy * dy);
            let dl = luminance(q) - lc;
            let weight = exp(-d2 * inv_spatial) * exp(-dl * dl * inv_range);
            sum = sum + weight * vec3<f32>(src[q * 3u], src[q * 3u + 1u], src[q * 3u + 2u]);
            sum_w = sum_w + weight;
        }
    }

    var rgb = vec3<f32>(src[center * 3u], src[center * 3u + 1u], src[center * 3u + 2u]);
    if (sum_w > 0.0) {
        rgb = sum / sum_w;
    }
    dst[center * 3u] = rgb.x;
    dst[center * 3u + 1u] = rgb.y;
    dst[center * 3u + 2u] = rgb.z;
}
`
