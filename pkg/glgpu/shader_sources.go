package glgpu

// Shader sources for the OpenGL device

// Vertex shader for batched primitives. Positions arrive in target pixels.
const spriteVertexShaderSource = `
#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec4 aColor;
layout (location = 2) in vec2 aUV;
layout (location = 3) in vec4 aRegion;

uniform vec2 targetSize;
uniform float flipY;

out vec4 vColor;
out vec2 vUV;
flat out vec4 vRegion;

void main() {
    vec2 ndc = aPos.xy / targetSize * 2.0 - 1.0;
    ndc.y *= flipY;
    gl_Position = vec4(ndc, 0.0, 1.0);
    vColor = aColor;
    vUV = aUV;
    vRegion = aRegion;
}
`

// Fragment shader for batched primitives. A negative region means untextured.
const spriteFragmentShaderSource = `
#version 410 core
in vec4 vColor;
in vec2 vUV;
flat in vec4 vRegion;
out vec4 FragColor;

uniform sampler2D atlas;
uniform bool textured;
uniform int pass;

void main() {
    vec4 color = vColor;
    if (textured && vRegion.x >= 0.0) {
        vec2 uv = mix(vRegion.xy, vRegion.zw, fract(vUV));
        vec4 texel = texture(atlas, uv);
        // atlases are stored premultiplied
        if (texel.a > 0.0) {
            texel.rgb /= texel.a;
        }
        color *= texel;
    }
    FragColor = color;
}
`

// Vertex shader for compositing a front buffer. Positions arrive in display
// pixels, aSrc in source buffer pixels.
const compositeVertexShaderSource = `
#version 410 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aSrc;

uniform vec2 displaySize;

out vec2 vSrc;

void main() {
    vec2 ndc = aPos / displaySize * 2.0 - 1.0;
    gl_Position = vec4(ndc.x, -ndc.y, 0.0, 1.0);
    vSrc = aSrc;
}
`

// Fragment shader for compositing. Mirrors the software device effect by
// effect; the output is premultiplied.
const compositeFragmentShaderSource = `
#version 410 core
in vec2 vSrc;
out vec4 FragColor;

uniform sampler2D screenTexture;
uniform vec2 sourceSize;
uniform vec2 displaySize;
uniform float scanlineRows;
uniform float rowOffset;

uniform float scanlines;
uniform float noiseAmount;
uniform uint noiseSeed;
uniform float saturation;
uniform float curvature;
uniform float aberration;
uniform float negative;
uniform int pixelSize;

uniform float fade;
uniform vec4 fadeColor;
uniform float tintAmount;
uniform vec4 tintColor;

uniform float fizzle;
uniform vec4 fizzleColor;
uniform uint fizzleSeed;

uniform vec4 wipe;
uniform vec4 wipeColor;

uint hash(int x, int y, uint seed) {
    uint h = seed + uint(x) * 374761393u + uint(y) * 668265263u;
    h = (h ^ (h >> 13)) * 1274126177u;
    return h ^ (h >> 16);
}

float unit(int x, int y, uint seed) {
    return float(hash(x, y, seed) & 0xFFFFFFu) / 16777216.0;
}

vec4 fetch(vec2 p) {
    if (p.x < 0.0 || p.y < 0.0 || p.x >= sourceSize.x || p.y >= sourceSize.y) {
        return vec4(0.0);
    }
    vec4 c = texture(screenTexture, p / sourceSize);
    if (c.a > 0.0) {
        c.rgb /= c.a;
    }
    return c;
}

void main() {
    ivec2 px = ivec2(floor(vSrc));
    vec2 s = vec2(px) + 0.5;
    if (pixelSize > 1) {
        s = vec2((px / pixelSize) * pixelSize) + 0.5;
    }
    if (curvature > 0.0) {
        vec2 n = s / sourceSize * 2.0 - 1.0;
        n *= 1.0 + curvature * 0.25 * dot(n, n);
        if (abs(n.x) > 1.0 || abs(n.y) > 1.0) {
            discard;
        }
        s = (n + 1.0) * 0.5 * sourceSize;
    }

    vec4 color = fetch(s);
    if (aberration > 0.0) {
        color.r = fetch(s + vec2(aberration, 0.0)).r;
        color.b = fetch(s - vec2(aberration, 0.0)).b;
    }

    if (color.a > 0.0) {
        if (saturation != 0.0) {
            float gray = dot(color.rgb, vec3(0.299, 0.587, 0.114));
            color.rgb = gray + (color.rgb - gray) * (1.0 + saturation);
        }
        color.rgb = mix(color.rgb, 1.0 - color.rgb, negative);
        color.rgb = mix(color.rgb, color.rgb * tintColor.rgb, tintAmount);
        color.rgb = mix(color.rgb, fadeColor.rgb, fade);
        color = clamp(color, 0.0, 1.0);
    }
    if (fizzle > 0.0 && unit(px.x, px.y, fizzleSeed) < fizzle) {
        color = fizzleColor;
    }
    if (px.x >= int(wipe.x) && px.y >= int(wipe.y) && px.x < int(wipe.z) && px.y < int(wipe.w)) {
        color = wipeColor;
    }

    ivec2 dp = ivec2(gl_FragCoord.x, displaySize.y - gl_FragCoord.y);
    float dark = 1.0;
    if (scanlines > 0.0) {
        int row = dp.y - int(rowOffset);
        int rows = int(scanlineRows);
        if ((rows == 1 && row % 2 == 1) || (rows > 1 && ((row % rows) + rows) % rows == rows - 1)) {
            dark = 1.0 - 0.5 * scanlines;
        }
    }
    vec3 rgb = color.rgb * color.a * dark;
    if (noiseAmount > 0.0) {
        rgb += (unit(dp.x, dp.y, noiseSeed) - 0.5) * noiseAmount * color.a;
    }
    FragColor = vec4(clamp(rgb, 0.0, color.a), color.a);
}
`
